// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func downCmd() *cobra.Command {
	downCmd := &cobra.Command{
		Use:       "down <target>",
		Short:     "Revert applied revisions down to a target revision number",
		Example:   "down 2",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"target"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid target revision %q", args[0])
			}

			m, err := newMigratorWithInitCheck(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Reverting to revision %d...", target)).Start()

			if err := m.Down(ctx, target); err != nil {
				sp.Fail(fmt.Sprintf("Downgrade failed: %v", err))
				return err
			}

			sp.Success(fmt.Sprintf("Database is at revision %d", target))
			return nil
		},
	}

	return downCmd
}
