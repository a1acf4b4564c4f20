package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"veritas/internal/cache"
	"veritas/internal/deps"
	"veritas/internal/httpapi"
	"veritas/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.ServerLockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another veritas server is already running")
			}
			defer func() {
				_ = lock.Unlock()
			}()

			statuses, err := deps.Check(cfg)
			for _, status := range statuses {
				if !status.Available && status.Optional {
					logging.WarnWithContext(logger, "optional dependency unavailable", "dependency_missing",
						logging.String("dependency", status.Name),
						logging.String(logging.FieldErrorHint, status.Detail),
						logging.String(logging.FieldImpact, status.Description+" is disabled"),
					)
				}
			}
			if err != nil {
				return err
			}

			address := cfg.API.Bind
			if bind != "" {
				address = bind
			}
			return ctx.withCache(func(records *cache.Cache) error {
				analyzer, err := ctx.newAnalyzer(cmd.Context(), records)
				if err != nil {
					return err
				}
				texts, err := ctx.newTextChecker(cmd.Context(), records)
				if err != nil {
					return err
				}
				policy := cfg.Verdict.Policy
				server := httpapi.New(address, policy, analyzer, records, logger)
				server.SetTextVerifier(texts)
				if err := server.Start(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())
				<-cmd.Context().Done()
				server.Stop()
				logger.Info("api server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override the api.bind address")
	return cmd
}
