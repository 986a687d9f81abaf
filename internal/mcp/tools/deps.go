package tools

import (
	"context"
	"fmt"

	"github.com/usestring/schema-harvester/internal/registry"
)

// DefaultMaxDocuments bounds the documents a single infer_schema call folds.
const DefaultMaxDocuments = 10000

// Deps contains all dependencies needed by tool handlers.
type Deps struct {
	// Store holds schemas harvested by the service. Optional; tools that
	// read from it report NOT_FOUND when it is nil.
	Store registry.Store

	MaxDocuments int
}

func (d *Deps) maxDocuments() int {
	if d.MaxDocuments <= 0 {
		return DefaultMaxDocuments
	}
	return d.MaxDocuments
}

// StoredSchema returns the latest schema stored for stream.
func (d *Deps) StoredSchema(ctx context.Context, stream string) (registry.Entry, error) {
	if d.Store == nil {
		return registry.Entry{}, ErrNotFound("schema registry", stream)
	}
	entry, found, err := d.Store.Get(ctx, stream)
	if err != nil {
		return registry.Entry{}, &CodedError{Code: ErrCodeInternal, Message: fmt.Sprintf("reading schema for %s", stream), Cause: err}
	}
	if !found {
		return registry.Entry{}, ErrNotFound("schema", stream)
	}
	return entry, nil
}
