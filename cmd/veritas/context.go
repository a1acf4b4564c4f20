package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"veritas/internal/acquire"
	"veritas/internal/cache"
	"veritas/internal/config"
	"veritas/internal/factcheck"
	"veritas/internal/frames"
	"veritas/internal/keypool"
	"veritas/internal/logging"
	"veritas/internal/pipeline"
	"veritas/internal/transcribe"
	"veritas/internal/verdict"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		logging.PruneLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays)
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// withCache opens the record cache for the duration of fn.
func (c *commandContext) withCache(fn func(*cache.Cache) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := cache.Open(cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	records := cache.New(store, cfg.MemoryTTL())
	defer records.Close()
	return fn(records)
}

// newAnalyzer wires the pipeline collaborators selected by the configuration.
func (c *commandContext) newAnalyzer(ctx context.Context, records *cache.Cache) (*pipeline.Analyzer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	policy, err := verdict.FromConfig(cfg.Verdict)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Dependencies{
		Fetcher: acquire.New(cfg, acquire.WithLogger(logger)),
		Sampler: frames.NewSampler(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
		Policy:  policy,
		Store:   records,
		Logger:  logger,
	}
	if cfg.Transcription.Enabled {
		deps.Transcriber = transcribe.New(cfg.Transcription, logger)
	}
	checker, err := c.newFactChecker(ctx)
	if err != nil {
		return nil, err
	}
	deps.FactChecker = checker
	return pipeline.New(cfg, deps)
}

// newFactChecker returns nil when fact checking is disabled.
func (c *commandContext) newFactChecker(ctx context.Context) (pipeline.FactChecker, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.FactCheck.Enabled {
		return nil, nil
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	verifier, err := factcheck.New(ctx, cfg.FactCheck, keypool.New(cfg.FactCheck.APIKeys), factcheck.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

func (c *commandContext) newTextChecker(ctx context.Context, records *cache.Cache) (*pipeline.TextChecker, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	checker, err := c.newFactChecker(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewTextChecker(checker, records, logger), nil
}
