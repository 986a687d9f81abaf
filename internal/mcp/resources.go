package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/internal/mcp/tools"
)

// Resource URI scheme: harvester://
// Supported URIs:
//   harvester://schemas
//   harvester://schemas/{stream}
const (
	schemeHarvester = "harvester://"
	schemasURI      = schemeHarvester + "schemas"
)

// registerResources registers the registry backed resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&sdkmcp.Resource{
		URI:         schemasURI,
		Name:        "Harvested Streams",
		Description: "Names of every stream with a harvested schema, with their latest revision.",
		MIMEType:    tools.MimeJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.6,
		},
	}, s.handleResourceStreams)

	s.mcpServer.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: schemasURI + "/{stream}",
		Name:        "Harvested Schema",
		Description: "Latest JSON schema the harvester service published for a stream.",
		MIMEType:    tools.MimeSchemaJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.8,
		},
	}, s.handleResourceSchema)
}

type streamSummary struct {
	Stream    string `json:"stream"`
	Revision  int    `json:"revision"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (s *Server) handleResourceStreams(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	streams, err := s.deps.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing streams: %w", err)
	}

	summaries := make([]streamSummary, 0, len(streams))
	for _, stream := range streams {
		entry, found, err := s.deps.Store.Get(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("reading schema for %s: %w", stream, err)
		}
		if !found {
			continue
		}
		summary := streamSummary{Stream: stream, Revision: entry.Revision}
		if !entry.UpdatedAt.IsZero() {
			summary.UpdatedAt = entry.UpdatedAt.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing resource: %w", err)
	}
	return toResourceResult(req.Params.URI, tools.MimeJSON, data), nil
}

func (s *Server) handleResourceSchema(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	stream, err := parseSchemaURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	entry, found, err := s.deps.Store.Get(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("reading schema for %s: %w", stream, err)
	}
	if !found {
		return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
	}
	return toResourceResult(req.Params.URI, tools.MimeSchemaJSON, entry.Schema), nil
}

// parseSchemaURI extracts the stream name from a harvester://schemas/ URI.
func parseSchemaURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, schemeHarvester) {
		return "", tools.ErrInvalidInput("invalid URI scheme: expected harvester://")
	}

	rest, ok := strings.CutPrefix(uri, schemasURI+"/")
	if !ok || rest == "" {
		return "", tools.ErrInvalidInput("schema URI requires a stream name")
	}
	stream, err := url.PathUnescape(rest)
	if err != nil {
		return "", tools.ErrInvalidInput(fmt.Sprintf("invalid stream name %q", rest))
	}
	return stream, nil
}

func toResourceResult(uri, mimeType string, data []byte) *sdkmcp.ReadResourceResult {
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mimeType,
				Text:     string(data),
			},
		},
	}
}
