package mcpsrv

import (
	"context"

	"github.com/usestring/schema-harvester/internal/mcp/tools"
)

// Deps gives custom tools access to the same infrastructure as the
// builtin tools.
type Deps struct {
	tools *tools.Deps
}

// HasRegistry reports whether harvested schemas are available.
func (d *Deps) HasRegistry() bool {
	return d.tools.Store != nil
}

// Streams lists the streams with a harvested schema.
func (d *Deps) Streams(ctx context.Context) ([]string, error) {
	if d.tools.Store == nil {
		return nil, nil
	}
	return d.tools.Store.List(ctx)
}

// Schema returns the latest harvested schema of stream and its revision.
func (d *Deps) Schema(ctx context.Context, stream string) ([]byte, int, error) {
	entry, err := d.tools.StoredSchema(ctx, stream)
	if err != nil {
		return nil, 0, err
	}
	return entry.Schema, entry.Revision, nil
}
