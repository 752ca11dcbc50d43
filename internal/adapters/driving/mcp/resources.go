package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// uriScheme is the custom URI scheme for Precedent resources.
const uriScheme = "precedent://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "graph",
		Name:        "graph",
		Description: "Nodes and edges of the precedent graph",
		MIMEType:    "application/json",
	}, s.handleGraphResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "messages/{messageId}",
		Name:        "message",
		Description: "A stored message",
		MIMEType:    "application/json",
	}, s.handleMessageResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "decisions/{decisionId}/precedents",
		Name:        "decision-precedents",
		Description: "The earlier decisions a decision cited, in rank order",
		MIMEType:    "application/json",
	}, s.handlePrecedentsResource)
}

func (s *Server) handleGraphResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	graph, err := s.ports.Ingestion.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	return jsonResource(req.Params.URI, graph)
}

func (s *Server) handleMessageResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractMessageID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	msg, err := s.ports.Ingestion.GetMessage(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return jsonResource(req.Params.URI, msg)
}

func (s *Server) handlePrecedentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractDecisionID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chain, err := s.ports.Ingestion.Precedents(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving precedents: %w", err)
	}
	if chain == nil {
		chain = []domain.Decision{}
	}
	return jsonResource(req.Params.URI, chain)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractMessageID extracts the id from precedent://messages/{messageId}.
func extractMessageID(uri string) string {
	const prefix = uriScheme + "messages/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractDecisionID extracts the id from precedent://decisions/{decisionId}/precedents.
func extractDecisionID(uri string) string {
	const prefix = uriScheme + "decisions/"
	const suffix = "/precedents"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
}
