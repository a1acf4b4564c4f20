package main

import (
	"strings"

	"github.com/spf13/cobra"

	"veritas/internal/cache"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify <text>",
		Short: "Fact-check a piece of text and record the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return ctx.withCache(func(records *cache.Cache) error {
				checker, err := ctx.newTextChecker(cmd.Context(), records)
				if err != nil {
					return err
				}
				verification, err := checker.VerifyText(cmd.Context(), text)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, verification)
				}
				out := cmd.OutOrStdout()
				renderVerification(out, verification, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verification as JSON")
	return cmd
}
