// Package format recognises well-known textual encodings in JSON strings.
//
// The checks operate on raw bytes and never allocate. Digits are read two or
// four at a time by packing them into an integer and testing all lanes at once.
package format

import "github.com/google/uuid"

// Format is a refinement tag on string values.
type Format uint8

const (
	None Format = iota
	Date
	Time
	DateTime
	UUID
)

// String returns the JSON Schema format name, or "" for None.
func (f Format) String() string {
	switch f {
	case Date:
		return "date"
	case Time:
		return "time"
	case DateTime:
		return "date-time"
	case UUID:
		return "uuid"
	default:
		return ""
	}
}

// Parse maps a JSON Schema format name back to a Format.
func Parse(name string) (Format, bool) {
	switch name {
	case "":
		return None, true
	case "date":
		return Date, true
	case "time":
		return Time, true
	case "date-time":
		return DateTime, true
	case "uuid":
		return UUID, true
	default:
		return None, false
	}
}

// Classify returns the most specific format s satisfies.
// A date-time also starts with a date, so it is tested first.
func Classify(s string) Format {
	switch {
	case IsDateTime(s):
		return DateTime
	case IsDate(s):
		return Date
	case IsTime(s):
		return Time
	case IsUUID(s):
		return UUID
	default:
		return None
	}
}

func twoDigits(b string) (uint8, bool) {
	v := uint16(b[0]) | uint16(b[1])<<8
	if (v-0x3030)&0xF0F0 != 0 || (v+0x4646)&0x8080 != 0 {
		return 0, false
	}
	return uint8(((v & 0x0F0F) * 2561) >> 8), true
}

func fourDigits(b string) (uint16, bool) {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	if (v-0x30303030)&0xF0F0F0F0 != 0 || (v+0x46464646)&0x80808080 != 0 {
		return 0, false
	}
	v = ((v & 0x0F0F0F0F) * 2561) >> 8
	return uint16(((v & 0x00FF00FF) * 6553601) >> 16), true
}

func isLeapYear(year uint16) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// IsDate reports whether s is a full-date (YYYY-MM-DD).
func IsDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	year, ok := fourDigits(s[0:4])
	if !ok {
		return false
	}
	month, ok := twoDigits(s[5:7])
	if !ok || month < 1 || month > 12 {
		return false
	}
	day, ok := twoDigits(s[8:10])
	if !ok || day == 0 {
		return false
	}

	switch month {
	case 4, 6, 9, 11:
		return day <= 30
	case 2:
		if isLeapYear(year) {
			return day <= 29
		}
		return day <= 28
	default:
		return day <= 31
	}
}

// IsTime reports whether s is a full-time: HH:MM:SS, an optional fraction and
// a mandatory offset (Z, z or ±HH:MM). Second 60 is only accepted when the
// instant is the last second of a UTC day.
func IsTime(s string) bool {
	n := len(s)
	if n < 9 || s[2] != ':' || s[5] != ':' {
		return false
	}
	hour, ok := twoDigits(s[0:2])
	if !ok {
		return false
	}
	minute, ok := twoDigits(s[3:5])
	if !ok {
		return false
	}
	second, ok := twoDigits(s[6:8])
	if !ok {
		return false
	}
	if hour > 23 || minute > 59 || second > 60 {
		return false
	}

	i := 8
	if s[i] == '.' {
		i++
		start := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}
	if i == n {
		return false
	}

	switch s[i] {
	case 'Z', 'z':
		return i == n-1 && (second != 60 || (hour == 23 && minute == 59))
	case '+':
		return validOffset(s[i+1:], hour, minute, second, -1)
	case '-':
		return validOffset(s[i+1:], hour, minute, second, 1)
	default:
		return false
	}
}

// validOffset checks an HH:MM offset. sign is the direction that converts
// local wall-clock time to UTC.
func validOffset(off string, hour, minute, second uint8, sign int) bool {
	if len(off) != 5 || off[2] != ':' {
		return false
	}
	oh, ok := twoDigits(off[0:2])
	if !ok {
		return false
	}
	om, ok := twoDigits(off[3:5])
	if !ok {
		return false
	}
	if oh > 23 || om > 59 {
		return false
	}
	if second != 60 {
		return true
	}

	utcH := int(hour) + sign*int(oh)
	utcM := int(minute) + sign*int(om)
	utcH += utcM / 60
	utcM %= 60
	if utcM < 0 {
		utcM += 60
		utcH--
	}
	utcH = ((utcH % 24) + 24) % 24
	return utcH == 23 && utcM == 59
}

// IsDateTime reports whether s is a date and a time joined by T or t.
func IsDateTime(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 'T' || s[i] == 't' {
			return IsDate(s[:i]) && IsTime(s[i+1:])
		}
	}
	return false
}

// IsUUID reports whether s is a UUID in the canonical hyphenated layout.
func IsUUID(s string) bool {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	return uuid.Validate(s) == nil
}
