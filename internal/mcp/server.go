package mcp

import (
	"context"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Serve starts the MCP stdio server for c. It blocks until stdin is closed or
// ctx is cancelled.
func Serve(ctx context.Context, c *Controller) error {
	srv := mcpserver.NewMCPServer(
		"cinema",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	RegisterTools(srv, c)

	stdioSrv := mcpserver.NewStdioServer(srv)
	return stdioSrv.Listen(ctx, os.Stdin, os.Stdout)
}
