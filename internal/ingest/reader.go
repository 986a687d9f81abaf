// Package ingest splits a byte stream into JSON documents.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Mode selects how documents are delimited in the input.
type Mode int

const (
	// Concatenated reads back-to-back JSON values, separated by optional
	// whitespace. A syntax error ends the stream.
	Concatenated Mode = iota
	// Lines reads one JSON value per line. Bad lines are reported and skipped.
	Lines
)

func (m Mode) String() string {
	if m == Lines {
		return "ndjson"
	}
	return "json"
}

// ParseMode maps a user supplied name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "json", "concatenated":
		return Concatenated, nil
	case "ndjson", "jsonl", "lines":
		return Lines, nil
	}
	return 0, fmt.Errorf("unknown input mode %q", s)
}

// Document is one JSON value with its source bytes. Numbers in Value are
// json.Number.
type Document struct {
	Index int // zero-based position among all values, including bad ones
	Line  int // one-based line number; zero in Concatenated mode
	Raw   []byte
	Value any
}

// DecodeError reports a value that is not valid JSON.
type DecodeError struct {
	Index int
	Line  int
	// Recoverable is true when reading can continue with the next value.
	Recoverable bool
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid json: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("document %d: invalid json: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a DecodeError after which reading may
// continue.
func IsRecoverable(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Recoverable
}

// Reader yields documents from an io.Reader.
type Reader struct {
	mode  Mode
	dec   *json.Decoder
	lines *bufio.Reader
	index int
	line  int
	err   error
}

// NewReader returns a Reader decoding r according to mode.
func NewReader(r io.Reader, mode Mode) *Reader {
	rd := &Reader{mode: mode}
	if mode == Lines {
		rd.lines = bufio.NewReaderSize(r, 64*1024)
	} else {
		rd.dec = json.NewDecoder(r)
		rd.dec.UseNumber()
	}
	return rd
}

// Next returns the next document, io.EOF at the end of input, or a
// *DecodeError. After a non-recoverable error every call returns that error.
func (r *Reader) Next() (Document, error) {
	if r.err != nil {
		return Document{}, r.err
	}
	if r.mode == Lines {
		return r.nextLine()
	}

	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			r.err = io.EOF
			return Document{}, io.EOF
		}
		r.err = &DecodeError{Index: r.index, Err: err}
		return Document{}, r.err
	}
	raw = bytes.Clone(raw)
	v, err := decodeOne(raw)
	if err != nil {
		r.err = &DecodeError{Index: r.index, Err: err}
		return Document{}, r.err
	}
	doc := Document{Index: r.index, Raw: raw, Value: v}
	r.index++
	return doc, nil
}

func (r *Reader) nextLine() (Document, error) {
	for {
		raw, err := r.lines.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				r.err = io.EOF
			} else {
				r.err = fmt.Errorf("read input: %w", err)
			}
			return Document{}, r.err
		}
		r.line++

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			continue
		}

		index := r.index
		r.index++
		v, decErr := decodeOne(trimmed)
		if decErr != nil {
			return Document{}, &DecodeError{Index: index, Line: r.line, Recoverable: true, Err: decErr}
		}
		return Document{Index: index, Line: r.line, Raw: trimmed, Value: v}, nil
	}
}

func decodeOne(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after value")
	}
	return v, nil
}

// ReadAll collects every document from r. Recoverable decode errors are
// passed to onError and skipped; the first fatal error is returned along
// with the documents read so far.
func ReadAll(r *Reader, onError func(error)) ([]Document, error) {
	var docs []Document
	for {
		doc, err := r.Next()
		switch {
		case err == nil:
			docs = append(docs, doc)
		case errors.Is(err, io.EOF):
			return docs, nil
		case IsRecoverable(err):
			if onError != nil {
				onError(err)
			}
		default:
			return docs, err
		}
	}
}
