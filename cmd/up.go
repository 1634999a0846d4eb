// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func upCmd() *cobra.Command {
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all outstanding revision phases to the database",
		Long: `Applies every phase the audit log does not yet record, in order. An
upgrade interrupted by a failure or a crash is resumed from the phase it
stopped at.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			m, err := newMigratorWithInitCheck(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Applying revisions...").Start()

			if err := m.Up(ctx); err != nil {
				sp.Fail(fmt.Sprintf("Upgrade failed: %v", err))
				return err
			}

			status, err := m.Status(ctx)
			if err != nil {
				return err
			}
			sp.Success(fmt.Sprintf("Database is up to date at revision %d", len(status.Applied)))
			return nil
		},
	}

	return upCmd
}
