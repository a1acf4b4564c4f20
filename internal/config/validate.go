package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateVerdict(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateFactCheck(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSampling() error {
	if c.Sampling.Stride <= 0 {
		return errors.New("sampling.stride must be positive")
	}
	if c.Sampling.MinFrames < 2 {
		return errors.New("sampling.min_frames must be at least 2")
	}
	return nil
}

func (c *Config) validateVerdict() error {
	switch c.Verdict.Policy {
	case PolicyBand:
		if c.Verdict.ArtifactLow < 0 || c.Verdict.ArtifactHigh > 1 {
			return errors.New("verdict.artifact_low and verdict.artifact_high must be within [0, 1]")
		}
		if c.Verdict.ArtifactLow >= c.Verdict.ArtifactHigh {
			return errors.New("verdict.artifact_low must be less than verdict.artifact_high")
		}
		if c.Verdict.LowMotionFloor < 0 {
			return errors.New("verdict.low_motion_floor must be non-negative")
		}
	case PolicyGraded:
		if c.Verdict.ArtifactThreshold < 0 || c.Verdict.ArtifactThreshold > 1 {
			return errors.New("verdict.artifact_threshold must be within [0, 1]")
		}
		if c.Verdict.MotionThreshold < 0 {
			return errors.New("verdict.motion_threshold must be non-negative")
		}
	default:
		return fmt.Errorf("verdict.policy %q is not supported (use %q or %q)", c.Verdict.Policy, PolicyBand, PolicyGraded)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.TimeoutSeconds <= 0 {
		return errors.New("pipeline.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if !c.Transcription.Enabled {
		return nil
	}
	switch c.Transcription.ComputeType {
	case "int8", "int8_float16", "float16", "float32", "auto":
	default:
		return fmt.Errorf("transcription.compute_type %q is not supported", c.Transcription.ComputeType)
	}
	return nil
}

func (c *Config) validateFactCheck() error {
	if !c.FactCheck.Enabled {
		return nil
	}
	if len(c.FactCheck.APIKeys) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/veritas/config.toml"
		}
		return fmt.Errorf("factcheck.api_keys is required when factcheck.enabled is true. Set GEMINI_API_KEYS env var or edit %s (create with 'veritas config init')", defaultPath)
	}
	if c.FactCheck.Temperature < 0 || c.FactCheck.Temperature > 2 {
		return errors.New("factcheck.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}
