// Package registry keeps the latest harvested schema of every stream.
package registry

import (
	"context"
	"time"
)

// Entry is the most recent schema published for one stream.
type Entry struct {
	Stream    string    `json:"stream"`
	Schema    []byte    `json:"schema"`
	Revision  int       `json:"revision"` // number of times the schema changed
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists entries by stream name. Implementations are safe for
// concurrent use.
type Store interface {
	// Put replaces the entry of e.Stream.
	Put(ctx context.Context, e Entry) error
	// Get returns the entry of stream, or false when none is stored.
	Get(ctx context.Context, stream string) (Entry, bool, error)
	// List returns the stored stream names in sorted order.
	List(ctx context.Context) ([]string, error)
	Close() error
}
