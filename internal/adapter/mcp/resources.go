package mcp

import (
	"context"
	"encoding/json"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers read-only MCP resources: the tool catalog
// and the upstream health summary.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"costscope://catalog",
			"Tool Catalog",
			mcplib.WithResourceDescription("Names and required roles of all billing tools"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalogResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"costscope://upstream/health",
			"Upstream Health",
			mcplib.WithResourceDescription("Circuit breaker state for the upstream cost API"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleHealthResource,
	)
}

func (s *Server) handleCatalogResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	type entry struct {
		Name string `json:"name"`
		Role string `json:"required_role"`
	}
	entries := make([]entry, 0, len(s.catalog))
	for name, spec := range s.catalog {
		entries = append(entries, entry{Name: name, Role: string(spec.role)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleHealthResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	state := "unknown"
	if s.deps.Health != nil {
		state = s.deps.Health()
	}
	data, err := json.Marshal(map[string]string{"circuit_state": state})
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
