package mcp

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	mcp "github.com/metoro-io/mcp-golang"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
	mcpstdio "github.com/metoro-io/mcp-golang/transport/stdio"

	"github.com/awantoch/loanscore/utils"
)

// ToolRegistration holds a tool's registration info for the MCP server.
type ToolRegistration struct {
	Name        string
	Description string
	Handler     any // must be a func(ctx, args) (*mcp.ToolResponse, error)
}

// Serve starts the MCP server over stdio or HTTP (path /mcp on addr) with the given tools.
func Serve(stdio, debug bool, addr string, tools []ToolRegistration) error {
	// stdout belongs to the protocol on stdio
	if stdio && !debug {
		utils.SetUserOutput(io.Discard)
	}

	var server *mcp.Server
	if stdio {
		utils.Info("Starting MCP server on stdio...")
		server = mcp.NewServer(mcpstdio.NewStdioServerTransport())
	} else {
		utils.Info("Starting MCP server on HTTP at %s...", addr)
		server = mcp.NewServer(mcphttp.NewHTTPTransport("/mcp").WithAddr(addr))
	}
	if err := RegisterAllTools(server, tools); err != nil {
		return err
	}
	if err := server.Serve(); err != nil {
		return err
	}
	if stdio {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		utils.Info("Received signal %v, shutting down MCP stdio server", sig)
	}
	return nil
}

// RegisterAllTools registers every tool, stopping at the first failure.
func RegisterAllTools(server *mcp.Server, tools []ToolRegistration) error {
	for _, t := range tools {
		if err := server.RegisterTool(t.Name, t.Description, t.Handler); err != nil {
			return utils.Errorf("register MCP tool %s: %w", t.Name, err)
		}
	}
	return nil
}
