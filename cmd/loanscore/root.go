package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/utils"
)

var (
	configPath  string
	debug       bool
	artifactURL string
)

// NewRootCmd creates the root 'loanscore' command with persistent flags and subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "loanscore",
		Short:         "Loan approval scoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to loanscore config (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logs")
	rootCmd.PersistentFlags().StringVar(&artifactURL, "artifact", "", "Pipeline artifact path, file:// or s3:// URL (overrides config)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if debug {
			utils.SetMode("debug")
		}
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newPredictCmd(),
		newSchemaCmd(),
		newArtifactCmd(),
		newMCPCmd(),
		newDecisionsCmd(),
	)
	return rootCmd
}

// loadConfig resolves config file, environment and flags, in increasing precedence,
// and applies the logging section.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if env := os.Getenv(constants.EnvConfigPath); env != "" && !cmd.Flags().Changed("config") {
		path = env
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, utils.Errorf("failed to load config %s: %w", path, err)
	}
	if artifactURL != "" {
		cfg.Artifact.URL = artifactURL
	}
	if err := utils.ConfigureLogging(cfg.Log.Options()); err != nil {
		return nil, err
	}
	return cfg, nil
}
