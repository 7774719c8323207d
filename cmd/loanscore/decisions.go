package main

import (
	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/storage"
	"github.com/awantoch/loanscore/templater"
	"github.com/awantoch/loanscore/utils"
)

func newDecisionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.CmdDecisions,
		Short: constants.DescDecision,
	}
	cmd.AddCommand(newDecisionsListCmd(), newDecisionsGetCmd(), newDecisionsDeleteCmd())
	return cmd
}

// auditService opens the configured audit storage without loading the pipeline.
func auditService(cmd *cobra.Command) (*core.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, core.ErrAuditDisabled
	}
	return core.NewService(core.NewResident(cfg.Artifact), core.WithStorage(store)), nil
}

// invokeDecisionOp runs a registered decision operation against the audit store.
func invokeDecisionOp(cmd *cobra.Command, id string, args any) (any, error) {
	op, ok := core.GetOperation(id)
	if !ok {
		return nil, utils.Errorf("operation %s not registered", id)
	}
	svc, err := auditService(cmd)
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	return op.Invoke(cmd.Context(), svc, args)
}

func newDecisionsListCmd() *cobra.Command {
	var limit int
	var output string
	cmd := &cobra.Command{
		Use:   constants.CmdList,
		Short: constants.DescList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := invokeDecisionOp(cmd, constants.OpDecisions, core.DecisionListArgs{Limit: limit})
			if err != nil {
				return err
			}
			decisions, _ := out.([]*model.Decision)
			return emit(output, templater.DecisionsTemplate, decisions, templater.DecisionsData(decisions))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", constants.DefaultDecisionLimit, "maximum number of decisions")
	cmd.Flags().StringVarP(&output, "output", "o", constants.OutputText, "output format: json or text")
	return cmd
}

func newDecisionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   constants.CmdGet + " <id>",
		Short: constants.DescGet,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := invokeDecisionOp(cmd, constants.OpDecision, core.DecisionArgs{ID: args[0]})
			if err != nil {
				return err
			}
			return emit(constants.OutputJSON, "", out, nil)
		},
	}
}

func newDecisionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   constants.CmdDelete + " <id>",
		Short: constants.DescDelete,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := auditService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.DeleteDecision(cmd.Context(), args[0]); err != nil {
				return utils.Errorf("delete decision %s: %w", args[0], err)
			}
			utils.User("✅ Deleted decision %s", args[0])
			return nil
		},
	}
}
