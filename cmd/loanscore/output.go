package main

import (
	"fmt"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/templater"
	"github.com/awantoch/loanscore/utils"
)

// emit prints v as indented JSON, or renders data through tmpl for text output.
func emit(format, tmpl string, v any, data map[string]any) error {
	switch format {
	case constants.OutputJSON, "":
		out, err := utils.MarshalJSONIndent(v)
		if err != nil {
			return err
		}
		utils.User("%s", out)
	case constants.OutputText:
		out, err := templater.Render(tmpl, data)
		if err != nil {
			return fmt.Errorf("render output: %w", err)
		}
		utils.User("%s", out)
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, constants.OutputJSON, constants.OutputText)
	}
	return nil
}
