package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	VideosDir string `toml:"videos_dir"`
	LogDir    string `toml:"log_dir"`
}

// Sampling controls which frames the sampler decodes.
type Sampling struct {
	// Stride is the number of source frames between two samples.
	Stride int `toml:"stride"`
	// MinFrames is the smallest sample count the pipeline will score.
	MinFrames int `toml:"min_frames"`
}

// Verdict selects the decision policy and its thresholds. The thresholds are
// heuristic and unvalidated; there is no ground-truth accuracy behind them.
type Verdict struct {
	// Policy is "band" (motion floor + artifact band) or "graded"
	// (independent artifact and motion flags).
	Policy string `toml:"policy"`

	// Band policy.
	ArtifactLow    float64 `toml:"artifact_low"`
	ArtifactHigh   float64 `toml:"artifact_high"`
	LowMotionFloor float64 `toml:"low_motion_floor"`

	// Graded policy.
	ArtifactThreshold float64 `toml:"artifact_threshold"`
	MotionThreshold   float64 `toml:"motion_threshold"`
}

// Pipeline contains runtime limits for a single analysis.
type Pipeline struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	// ScoringWorkers bounds per-frame parallelism. 0 means one per CPU.
	ScoringWorkers int `toml:"scoring_workers"`
}

// Cache configures the in-memory layer in front of the SQLite store.
type Cache struct {
	MemoryTTLSeconds int `toml:"memory_ttl_seconds"`
}

// Acquire configures the yt-dlp download collaborator.
type Acquire struct {
	Binary         string `toml:"binary"`
	CookiesPath    string `toml:"cookies_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription configures the faster-whisper CLI collaborator.
type Transcription struct {
	Enabled     bool   `toml:"enabled"`
	Binary      string `toml:"binary"`
	Model       string `toml:"model"`
	ComputeType string `toml:"compute_type"`
	Threads     int    `toml:"threads"`
	Language    string `toml:"language"`
}

// FactCheck configures the Gemini verifier for transcripts and free text.
type FactCheck struct {
	Enabled           bool     `toml:"enabled"`
	APIKeys           []string `toml:"api_keys"`
	Model             string   `toml:"model"`
	Temperature       float64  `toml:"temperature"`
	GoogleSearch      bool     `toml:"google_search"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	SystemInstruction string   `toml:"system_instruction"`
}

// API contains HTTP server settings.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for veritas.
//
// Configuration sections by subsystem:
//   - Paths: database, download, and log directories
//   - Sampling: frame stride and minimum sample count
//   - Verdict: decision policy and thresholds
//   - Pipeline: per-analysis timeout and scoring parallelism
//   - Cache: in-memory cache TTL
//   - Acquire: yt-dlp downloader
//   - Transcription: faster-whisper CLI
//   - FactCheck: Gemini verification of transcripts
//   - API: HTTP bind address
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sampling      Sampling      `toml:"sampling"`
	Verdict       Verdict       `toml:"verdict"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Cache         Cache         `toml:"cache"`
	Acquire       Acquire       `toml:"acquire"`
	Transcription Transcription `toml:"transcription"`
	FactCheck     FactCheck     `toml:"factcheck"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/veritas/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("veritas.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, download, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.VideosDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the analysis cache.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "veritas.db")
}

// ServerLockPath returns the lock file that keeps a single server per data directory.
func (c *Config) ServerLockPath() string {
	return filepath.Join(c.Paths.DataDir, "veritas-serve.lock")
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for frame decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// PipelineTimeout returns the wall-clock budget for one analysis.
func (c *Config) PipelineTimeout() time.Duration {
	return time.Duration(c.Pipeline.TimeoutSeconds) * time.Second
}

// MemoryTTL returns how long analysis records stay in the memory layer.
func (c *Config) MemoryTTL() time.Duration {
	return time.Duration(c.Cache.MemoryTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
