package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"audiogen/internal/api"
	"audiogen/internal/render"
	"audiogen/internal/submission"
)

func newParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "params",
		Short:       "Describe the generation parameters accepted by --set",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			recommended, err := submission.Build(recommendedPreview())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(submission.Hints))
			for _, hint := range submission.Hints {
				value, _ := recommended.Values.Get(hint.Name)
				rows = append(rows, []string{hint.Name, api.FormatValue(value), hint.Recommendation, hint.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.RenderTable(
				[]string{"Parameter", "Default", "Recommended", "Description"},
				rows,
				nil,
			))
			return nil
		},
	}
}

// recommendedPreview is the recommended form with the advanced panel open so
// every parameter has a value to show.
func recommendedPreview() submission.Form {
	form := submission.Recommended()
	form.Prompt = "preview"
	form.AdvancedOpen = true
	return form
}
