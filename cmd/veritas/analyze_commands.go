package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"veritas/internal/cache"
	"veritas/internal/config"
	"veritas/internal/pipeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Download and score a video by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(records *cache.Cache) error {
				analyzer, err := ctx.newAnalyzer(cmd.Context(), records)
				if err != nil {
					return err
				}
				resp, err := analyzer.Analyze(cmd.Context(), pipeline.Request{URL: args[0], Force: force})
				if err != nil {
					return err
				}
				return printResponse(cmd, resp, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when a cached analysis exists")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func newAnalyzeFileCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string
	var videoID string
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze-file <path>",
		Short: "Score a local video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect path %q: %w", path, err)
			}
			if info.IsDir() {
				return errors.New("analyze-file expects a video file, not a directory")
			}
			return ctx.withCache(func(records *cache.Cache) error {
				analyzer, err := ctx.newAnalyzer(cmd.Context(), records)
				if err != nil {
					return err
				}
				resp, err := analyzer.AnalyzeFile(cmd.Context(), pipeline.FileRequest{
					Path:    path,
					URL:     sourceURL,
					VideoID: videoID,
					Title:   title,
				})
				if err != nil {
					return err
				}
				return printResponse(cmd, resp, asJSON)
			})
		},
	}
	cmd.Flags().StringVar(&sourceURL, "url", "", "URL to store the result under (default file://<path>)")
	cmd.Flags().StringVar(&videoID, "video-id", "", "Platform video id to store with the result")
	cmd.Flags().StringVar(&title, "title", "", "Title to store with the result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func printResponse(cmd *cobra.Command, resp pipeline.Response, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	renderRecord(out, resp.Record, resp.Cached, shouldColorize(out))
	return nil
}
