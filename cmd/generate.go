// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var message string

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the next revision by diffing the declared schema against the previous revision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if message == "" {
				message, _ = pterm.DefaultInteractiveTextInput.
					WithDefaultText("Revision message").
					Show()
			}

			m, err := newMigrator(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Generating revision...").Start()

			if err := m.Generate(ctx, message); err != nil {
				sp.Fail(fmt.Sprintf("Generation failed: %v", err))
				return err
			}

			sp.Success("Revision generated")
			return nil
		},
	}

	generateCmd.Flags().StringVarP(&message, "message", "m", "", "Message describing the revision")

	return generateCmd
}
