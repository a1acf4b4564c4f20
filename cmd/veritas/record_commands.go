package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"veritas/internal/cache"
	"veritas/internal/canonical"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var videoID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lookup [url]",
		Short: "Show the stored analysis for a URL or video id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canonicalURL := ""
			id := strings.TrimSpace(videoID)
			if len(args) == 1 {
				canon, err := canonical.Canonicalize(args[0])
				if err != nil {
					return err
				}
				canonicalURL = canon.URL
				if id == "" {
					id = canon.VideoID
				}
			}
			if canonicalURL == "" && id == "" {
				return fmt.Errorf("a url or --video-id is required")
			}
			return ctx.withCache(func(records *cache.Cache) error {
				rec, err := records.Lookup(cmd.Context(), canonicalURL, id)
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No analysis recorded")
					return nil
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				renderRecord(out, rec, false, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&videoID, "video-id", "", "Look up by platform video id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analyses, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(records *cache.Cache) error {
				recs, err := records.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					if recs == nil {
						recs = []*cache.Record{}
					}
					return writeJSON(cmd, recs)
				}
				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, "No analyses recorded")
					return nil
				}
				fmt.Fprintln(out, recordTable(recs, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}
