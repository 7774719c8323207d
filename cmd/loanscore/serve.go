package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	loanhttp "github.com/awantoch/loanscore/http"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   constants.CmdServe,
		Short: constants.DescServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				host, port := config.SplitAddr(addr)
				cfg.HTTP.Host = host
				if port > 0 {
					cfg.HTTP.Port = port
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return loanhttp.StartServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. :8000 (overrides config)")
	return cmd
}
