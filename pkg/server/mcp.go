package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/deep-research/pkg/chat"
)

// NewMCPServer registers the research tools on an MCP server.
func NewMCPServer(tools *chat.ResearchToolset, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "deep-research-mcp",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deep_research",
		Description: "Research a topic on the web over several search iterations and return a Markdown report with sources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args chat.DeepResearchArgs) (*mcp.CallToolResult, chat.DeepResearchResp, error) {
		resp, err := tools.DeepResearch(ctx, args)
		if err != nil {
			return nil, chat.DeepResearchResp{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Report}},
		}, resp, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clarifying_questions",
		Description: "Generate questions that narrow down the scope of a research topic.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args chat.ClarifyArgs) (*mcp.CallToolResult, chat.ClarifyResp, error) {
		resp, err := tools.ClarifyingQuestions(ctx, args)
		return nil, resp, err
	})

	return server
}

// NewMCPHandler serves server over the streamable HTTP transport.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
