// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgrev/pgrev/cmd/flags"
	"github.com/pgrev/pgrev/pkg/revisions"
	"github.com/pgrev/pgrev/pkg/state"
)

var incantationCmd = &cobra.Command{
	Use:   "incantation",
	Short: "Print the SQL an application runs on every new connection",
	Long: `Prints the connection incantation of the latest revision: it prepends the
revision's shim schema to the search_path and registers the backend in the
connections registry.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		repo, err := revisions.Load(flags.ConfigPath())
		if err != nil {
			return err
		}
		if len(repo.Revisions) == 0 {
			return fmt.Errorf("no revisions found under %q", repo.Dir)
		}

		st, err := state.New(ctx, flags.PostgresURL(), flags.StateSchema())
		if err != nil {
			return err
		}
		defer st.Close()

		latest := repo.Revision(len(repo.Revisions))
		fmt.Print(st.Incantation(latest.Number, latest.SchemaHash))
		return nil
	},
}
