package main

import (
	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	mcpserver "github.com/awantoch/loanscore/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.CmdMCP,
		Short: constants.DescMCP,
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	var stdio bool
	var addr string
	cmd := &cobra.Command{
		Use:   constants.CmdServe,
		Short: constants.DescMCPServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("stdio") {
				stdio = cfg.MCP.Stdio || stdio
			}
			if addr == "" {
				addr = cfg.MCP.Addr
			}
			svc, err := core.NewServiceFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return mcpserver.Serve(stdio, debug, addr, mcpserver.BuildToolRegistrations(svc))
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", true, "serve over stdin/stdout instead of HTTP (default)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for HTTP mode (overrides config)")
	return cmd
}
