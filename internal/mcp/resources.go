package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

// Resource URIs.
const (
	StatusURI       = "mcpvector://status"
	QueryMetricsURI = "mcpvector://query_metrics"
	JournalURI      = "mcpvector://journal"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "status",
		URI:         StatusURI,
		Description: "Index state: document count, watched folders, embedder and the last reconciliation run",
		MIMEType:    "application/json",
	}, s.readStatus)

	s.mcp.AddResource(&mcp.Resource{
		Name:        "query_metrics",
		URI:         QueryMetricsURI,
		Description: "Query telemetry: totals, zero-result rate, latency distribution and top terms",
		MIMEType:    "application/json",
	}, s.readQueryMetrics)

	s.mcp.AddResource(&mcp.Resource{
		Name:        "journal",
		URI:         JournalURI,
		Description: "Latest ingestion events, newest first: path, outcome, detail and duration",
		MIMEType:    "application/json",
	}, s.readJournal)
}

func (s *Server) readStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(req.Params.URI, st)
}

func (s *Server) readQueryMetrics(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	if st.Queries == nil {
		return nil, NewResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, st.Queries)
}

func (s *Server) readJournal(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	events, err := s.svc.Recent(ctx, api.DefaultJournalLimit)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(req.Params.URI, events)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
