package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "mcpvector"

// Server bridges MCP clients with the vector search API.
type Server struct {
	mcp    *mcp.Server
	svc    *api.Service
	logger *slog.Logger
}

// NewServer creates an MCP server with the search tools and resources registered.
func NewServer(svc *api.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("api service is required")
	}

	s := &Server{
		svc:    svc,
		logger: logging.OrDefault(logger),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	if err := s.registerTools(); err != nil {
		return nil, err
	}
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() error {
	searchSchema, err := searchOutputSchema()
	if err != nil {
		return fmt.Errorf("search output schema: %w", err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:         ToolSearch,
		OutputSchema: searchSchema,
		Description:  "Semantic search over the watched folders. Finds documents by meaning, not exact words. Returns file paths ranked by similarity with their metadata.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolStatus,
		Description: "Report the index state: document count, watched folders, supported extensions and the active embedding model.",
	}, s.statusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRun,
		Description: "Re-scan the watched folders (or the given paths) and index anything new or changed. Returns immediately; progress shows in vector_status.",
	}, s.runHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 3))
	return nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	resp, err := s.svc.Search(ctx, api.SearchRequest{
		Query: input.Query,
		TopK:  input.TopK,
		Paths: input.Paths,
	})
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", resp.ResultsCount))

	out := SearchOutput{
		Query:        resp.Query,
		TopK:         resp.TopK,
		ResultsCount: resp.ResultsCount,
		Results:      make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, ToSearchResultOutput(r))
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(resp)}},
	}
	return result, out, nil
}

func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	out := StatusOutput{
		ModelName:           st.ModelName,
		WatchFolders:        st.WatchFolders,
		SupportedExtensions: st.SupportedExtensions,
		EmbeddingDimension:  st.EmbeddingDimension,
		DocumentCount:       st.DocumentCount,
		StorageLocation:     st.StorageLocation,
		PersistedFiles:      st.PersistedFilesPresent,
		QueueDepth:          st.QueueDepth,
		WatcherMode:         st.WatcherMode,
		Embedder: EmbedderOutput{
			Provider:   st.Embedder.Provider,
			Model:      st.Embedder.Model,
			Dimensions: st.Embedder.Dimensions,
			Cached:     st.Embedder.Cached,
		},
	}
	if len(st.Processed) > 0 {
		out.Processed = make(map[string]int64, len(st.Processed))
		for outcome, n := range st.Processed {
			out.Processed[string(outcome)] = n
		}
	}
	if len(st.Journal) > 0 {
		out.Journal = make(map[string]int64, len(st.Journal))
		for outcome, n := range st.Journal {
			out.Journal[string(outcome)] = n
		}
	}
	if run := st.LastRun; run != nil {
		out.LastRun = &RunOutput{
			ID:             run.ID,
			Trigger:        run.Trigger,
			Status:         string(run.Status),
			Stage:          string(run.Stage),
			Scanned:        run.Scanned,
			Enqueued:       run.Enqueued,
			ElapsedSeconds: run.ElapsedSeconds,
			ErrorMessage:   run.ErrorMessage,
		}
	}
	return nil, out, nil
}

func (s *Server) runHandler(ctx context.Context, _ *mcp.CallToolRequest, input RunInput) (
	*mcp.CallToolResult,
	RunAck,
	error,
) {
	resp, err := s.svc.Run(ctx, api.RunRequest{Paths: input.Paths})
	if err != nil {
		return nil, RunAck{}, MapError(err)
	}
	s.logger.Info("run requested",
		slog.String("run_id", resp.RunID),
		slog.Int("paths", len(input.Paths)))
	return nil, RunAck{Status: resp.Status, Message: resp.Message, RunID: resp.RunID}, nil
}

// Serve runs the server over stdio until ctx is canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// generateRequestID creates a short request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
