// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgrev/pgrev/cmd/flags"
	"github.com/pgrev/pgrev/pkg/state"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pgrev, creating the schema that stores migrator state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := state.New(ctx, flags.PostgresURL(), flags.StateSchema())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Init(ctx); err != nil {
			return err
		}

		fmt.Println("Initialization done! pgrev is ready to be used")
		return nil
	},
}
