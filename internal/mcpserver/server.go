package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all creditrail tools
// registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("creditrail", "1.0.0")
	client := NewRailClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCheckBalance, h.HandleCheckBalance)
	s.AddTool(ToolCreditHistory, h.HandleCreditHistory)
	s.AddTool(ToolGetOrder, h.HandleGetOrder)
	s.AddTool(ToolListOrders, h.HandleListOrders)
	s.AddTool(ToolListUnreconciled, h.HandleListUnreconciled)
	s.AddTool(ToolEventCounts, h.HandleEventCounts)

	return s
}
