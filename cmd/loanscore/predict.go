package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/features"
	loanhttp "github.com/awantoch/loanscore/http"
	"github.com/awantoch/loanscore/templater"
	"github.com/awantoch/loanscore/utils"
)

// newPredictCmd creates the 'predict' subcommand. Input comes from --json,
// --file or one flag per field; all three go through request validation.
func newPredictCmd() *cobra.Command {
	var inline, file, output, tmpl string
	values := make(map[string]*string, len(features.Schema))

	cmd := &cobra.Command{
		Use:   constants.CmdPredict,
		Short: constants.DescPredict,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := predictBody(cmd, inline, file, values)
			if err != nil {
				return err
			}
			in, err := loanhttp.DecodeUserInput(body)
			if err != nil {
				return fmt.Errorf("invalid input: %w", err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := core.NewServiceFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			pred, err := svc.Predict(core.WithChannel(cmd.Context(), constants.ChannelCLI), in)
			if err != nil {
				return utils.Errorf("prediction failed: %w", err)
			}
			if tmpl != "" {
				output = constants.OutputText
			} else {
				tmpl = templater.PredictionTemplate
			}
			return emit(output, tmpl, pred, templater.PredictionData(pred))
		},
	}
	cmd.Flags().StringVar(&inline, "json", "", "request body as inline JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON request body")
	cmd.Flags().StringVarP(&output, "output", "o", constants.OutputJSON, "output format: json or text")
	cmd.Flags().StringVar(&tmpl, "template", "", "custom pongo2 template for text output, e.g. '{{ approval_probability|percent }}'")
	for _, col := range features.Schema {
		values[col.Field] = cmd.Flags().String(col.Field, "", fmt.Sprintf("%s (%s)", col.Column, col.Kind))
	}
	return cmd
}

func predictBody(cmd *cobra.Command, inline, file string, values map[string]*string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		return os.ReadFile(file)
	}
	doc := make(map[string]string, len(values))
	for field, v := range values {
		if cmd.Flags().Changed(field) {
			doc[field] = *v
		}
	}
	return json.Marshal(doc)
}
