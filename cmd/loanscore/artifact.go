package main

import (
	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/templater"
	"github.com/awantoch/loanscore/utils"
)

func newArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.CmdArtifact,
		Short: constants.DescArtifact,
	}
	cmd.AddCommand(newArtifactValidateCmd(), newArtifactInspectCmd())
	return cmd
}

// artifactFromArgs picks the positional URL, falling back to the configured one.
func artifactFromArgs(cmd *cobra.Command, args []string) (config.ArtifactConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.ArtifactConfig{}, err
	}
	ac := cfg.Artifact
	if len(args) == 1 {
		ac.URL = args[0]
	}
	return ac, nil
}

func newArtifactValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   constants.CmdValidate + " [url]",
		Short: constants.DescValidate,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := artifactFromArgs(cmd, args)
			if err != nil {
				return err
			}
			if _, err := core.LoadArtifact(cmd.Context(), ac); err != nil {
				return utils.Errorf("artifact %s is invalid: %w", ac.URL, err)
			}
			utils.User("✅ %s is a valid pipeline artifact", ac.URL)
			return nil
		},
	}
}

func newArtifactInspectCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   constants.CmdInspect + " [url]",
		Short: constants.DescInspect,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := artifactFromArgs(cmd, args)
			if err != nil {
				return err
			}
			p, err := core.LoadArtifact(cmd.Context(), ac)
			if err != nil {
				return err
			}
			info := p.Info()
			return emit(output, templater.InfoTemplate, info, templater.InfoData(info))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", constants.OutputJSON, "output format: json or text")
	return cmd
}
