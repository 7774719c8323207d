package main

import (
	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/utils"
)

// newSchemaCmd creates the 'schema' subcommand: the field to column table, or
// the request JSON Schema with --json-schema.
func newSchemaCmd() *cobra.Command {
	var jsonSchema bool
	cmd := &cobra.Command{
		Use:   constants.CmdSchema,
		Short: constants.DescSchema,
		RunE: func(cmd *cobra.Command, args []string) error {
			var v any = features.RequestSchema()
			if !jsonSchema {
				op, ok := core.GetOperation(constants.OpSchema)
				if !ok {
					return utils.Errorf("operation %s not registered", constants.OpSchema)
				}
				out, err := op.Invoke(cmd.Context(), nil, op.NewArgs())
				if err != nil {
					return err
				}
				v = out
			}
			data, err := utils.MarshalJSONIndent(v)
			if err != nil {
				return err
			}
			utils.User("%s", data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonSchema, "json-schema", false, "print the request body JSON Schema instead")
	return cmd
}
