package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veritas/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses, checkErr := deps.Check(cfg)
			if asJSON {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
				return checkErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dependencyTable(statuses, shouldColorize(out)))
			return checkErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statuses as JSON")
	return cmd
}
