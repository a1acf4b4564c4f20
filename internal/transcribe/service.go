package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"veritas/internal/config"
	"veritas/internal/logging"
	"veritas/internal/services"
)

// Decoding settings tuned for CPU throughput.
const (
	BeamSize              = "1"
	Temperature           = "0"
	VADMinSilenceDuration = "400"
	Device                = "cpu"
	OutputFormat          = "json"
)

// Result is a finished transcription.
type Result struct {
	Text            string
	SRT             string
	DurationSeconds float64
	Language        string
}

// Segment is one timed span of recognised speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type payload struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Service invokes whisper-ctranslate2.
type Service struct {
	binary        string
	model         string
	computeType   string
	threads       int
	language      string
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// New builds a Service from the transcription configuration.
func New(cfg config.Transcription, logger *slog.Logger) *Service {
	return &Service{
		binary:      cfg.Binary,
		model:       cfg.Model,
		computeType: cfg.ComputeType,
		threads:     cfg.Threads,
		language:    NormalizeLanguage(cfg.Language),
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.model
}

// Transcribe recognises speech in the audio track of videoPath.
func (s *Service) Transcribe(ctx context.Context, videoPath string) (Result, error) {
	if strings.TrimSpace(videoPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "transcribe", "input", "video path required", nil)
	}
	workDir, err := os.MkdirTemp("", "veritas-transcribe-*")
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: create work dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	started := time.Now()
	if err := s.run(ctx, s.binary, s.buildArgs(videoPath, workDir)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "transcribe", "whisper", videoPath, ctxErr)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisper", videoPath, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	jsonPath := filepath.Join(workDir, baseName+".json")
	result, err := loadResult(jsonPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "parse output", jsonPath, err)
	}
	s.logger.Debug("transcription complete",
		logging.String("model", s.model),
		logging.Int("characters", len(result.Text)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		source,
		"--model", s.model,
		"--device", Device,
		"--compute_type", s.computeType,
		"--threads", strconv.Itoa(s.threads),
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_filter", "True",
		"--vad_min_silence_duration_ms", VADMinSilenceDuration,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--verbose", "False",
	}
	if s.language != "" {
		args = append(args, "--language", s.language)
	}
	return args
}

func loadResult(jsonPath string) (Result, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Result{}, fmt.Errorf("parse whisper json: %w", err)
	}
	return buildResult(p), nil
}

func buildResult(p payload) Result {
	segments := make([]Segment, 0, len(p.Segments))
	lines := make([]string, 0, len(p.Segments))
	var duration float64
	for _, seg := range p.Segments {
		seg.Text = norm.NFC.String(strings.TrimSpace(seg.Text))
		if seg.End > duration {
			duration = seg.End
		}
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
		lines = append(lines, seg.Text)
	}
	return Result{
		Text:            strings.TrimSpace(strings.Join(lines, "\n")),
		SRT:             RenderSRT(segments),
		DurationSeconds: duration,
		Language:        NormalizeLanguage(p.Language),
	}
}

// NormalizeLanguage maps a language tag, ISO 639-2 code, or English name
// onto the two-letter code whisper expects. Unknown input yields "".
func NormalizeLanguage(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" {
		return ""
	}
	tag, err := language.Parse(value)
	if err != nil {
		tag, err = languageByName(value)
		if err != nil {
			return ""
		}
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

var errUnknownLanguage = errors.New("unknown language")

func languageByName(name string) (language.Tag, error) {
	for _, tag := range whisperLanguages {
		if strings.EqualFold(englishNames.Name(tag), name) {
			return tag, nil
		}
	}
	return language.Und, errUnknownLanguage
}
