package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVerdict()
	c.normalizePipeline()
	if err := c.normalizeAcquire(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeFactCheck()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.VideosDir) == "" {
		c.Paths.VideosDir = defaultVideosDir
	}
	if c.Paths.VideosDir, err = expandPath(c.Paths.VideosDir); err != nil {
		return fmt.Errorf("paths.videos_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVerdict() {
	c.Verdict.Policy = strings.ToLower(strings.TrimSpace(c.Verdict.Policy))
	if c.Verdict.Policy == "" {
		c.Verdict.Policy = defaultVerdictPolicy
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ScoringWorkers < 0 {
		c.Pipeline.ScoringWorkers = 0
	}
	if c.Cache.MemoryTTLSeconds < 0 {
		c.Cache.MemoryTTLSeconds = 0
	}
}

func (c *Config) normalizeAcquire() error {
	c.Acquire.Binary = strings.TrimSpace(c.Acquire.Binary)
	if c.Acquire.Binary == "" {
		c.Acquire.Binary = defaultAcquireBinary
	}
	var err error
	c.Acquire.CookiesPath = strings.TrimSpace(c.Acquire.CookiesPath)
	if c.Acquire.CookiesPath, err = expandPath(c.Acquire.CookiesPath); err != nil {
		return fmt.Errorf("acquire.cookies_path: %w", err)
	}
	if c.Acquire.TimeoutSeconds <= 0 {
		c.Acquire.TimeoutSeconds = defaultAcquireTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Binary = strings.TrimSpace(c.Transcription.Binary)
	if c.Transcription.Binary == "" {
		c.Transcription.Binary = defaultTranscriptionBinary
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	if c.Transcription.ComputeType == "" {
		c.Transcription.ComputeType = defaultTranscriptionCompute
	}
	if c.Transcription.Threads <= 0 {
		c.Transcription.Threads = defaultTranscriptionThreads
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
}

func (c *Config) normalizeFactCheck() {
	keys := make([]string, 0, len(c.FactCheck.APIKeys))
	seen := make(map[string]struct{}, len(c.FactCheck.APIKeys))
	appendKey := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, exists := seen[value]; exists {
			return
		}
		seen[value] = struct{}{}
		keys = append(keys, value)
	}
	for _, key := range c.FactCheck.APIKeys {
		appendKey(key)
	}
	if len(keys) == 0 {
		if value, ok := os.LookupEnv("GEMINI_API_KEYS"); ok {
			for _, key := range strings.Split(value, ",") {
				appendKey(key)
			}
		}
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			appendKey(value)
		}
	}
	c.FactCheck.APIKeys = keys

	c.FactCheck.Model = strings.TrimSpace(c.FactCheck.Model)
	if c.FactCheck.Model == "" {
		if value, ok := os.LookupEnv("GEMINI_MODEL"); ok && strings.TrimSpace(value) != "" {
			c.FactCheck.Model = strings.TrimSpace(value)
		} else {
			c.FactCheck.Model = defaultFactCheckModel
		}
	}
	if c.FactCheck.RequestsPerMinute <= 0 {
		c.FactCheck.RequestsPerMinute = defaultFactCheckRequestsPerMin
	}
	if c.FactCheck.TimeoutSeconds <= 0 {
		c.FactCheck.TimeoutSeconds = defaultFactCheckTimeoutSeconds
	}
	c.FactCheck.SystemInstruction = strings.TrimSpace(c.FactCheck.SystemInstruction)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("VERITAS_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
