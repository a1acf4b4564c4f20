package factcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"veritas/internal/config"
	"veritas/internal/keypool"
	"veritas/internal/logging"
	"veritas/internal/services"
)

// DefaultSystemInstruction is used when the configuration does not supply one.
const DefaultSystemInstruction = "You are an investigative journalist. Verify whether the claims in the provided transcript are accurate. " +
	"Respond strictly as JSON with the keys accuracy, accuracy_reason, reason, and urls: " +
	`{"accuracy": "<percent>%", "accuracy_reason": "<why this accuracy>", "reason": "<short explanation>", "urls": ["<supporting source>"]}. ` +
	"Keep accuracy between 0% and 100% and use a low value when the claims cannot be verified."

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = 30 * time.Second
)

// ErrEmptyTranscript is returned when there is no text to verify.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Result is a parsed verification.
type Result struct {
	Accuracy       string   `json:"accuracy"`
	AccuracyReason string   `json:"accuracy_reason"`
	Reason         string   `json:"reason"`
	URLs           []string `json:"urls"`
	Raw            string   `json:"-"`
}

// Generator is the subset of the genai models service the verifier uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory builds a Generator for one API key.
type ClientFactory func(ctx context.Context, apiKey string) (Generator, error)

// Option configures a Verifier.
type Option func(*Verifier)

// WithClientFactory replaces the genai client constructor (primarily for tests).
func WithClientFactory(factory ClientFactory) Option {
	return func(v *Verifier) {
		if factory != nil {
			v.factory = factory
		}
	}
}

// WithLogger sets the verifier logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logging.NewComponentLogger(logger, "factcheck")
	}
}

// WithRetryBackoff overrides the delay between retried requests.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(v *Verifier) {
		v.baseDelay = base
		v.maxDelay = maxDelay
	}
}

// Verifier sends transcripts to Gemini for verification.
type Verifier struct {
	model       string
	timeout     time.Duration
	genConfig   *genai.GenerateContentConfig
	keys        *keypool.Pool
	clients     map[string]Generator
	limiter     *rate.Limiter
	factory     ClientFactory
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// New builds a Verifier with one client per key in pool.
func New(ctx context.Context, cfg config.FactCheck, pool *keypool.Pool, opts ...Option) (*Verifier, error) {
	if pool.Len() == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "factcheck", "init", "no api keys", keypool.ErrNoKeys)
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 1
	}
	v := &Verifier{
		model:       cfg.Model,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		genConfig:   buildGenerateConfig(cfg),
		keys:        pool,
		clients:     make(map[string]Generator, pool.Len()),
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		factory:     newGenAIClient,
		logger:      logging.NewComponentLogger(nil, "factcheck"),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(v)
	}
	for i, key := range pool.Keys() {
		client, err := v.factory(ctx, key)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "factcheck", "init", fmt.Sprintf("client for key #%d", i+1), err)
		}
		v.clients[key] = client
	}
	return v, nil
}

func newGenAIClient(ctx context.Context, apiKey string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func buildGenerateConfig(cfg config.FactCheck) *genai.GenerateContentConfig {
	instruction := strings.TrimSpace(cfg.SystemInstruction)
	if instruction == "" {
		instruction = DefaultSystemInstruction
	}
	gen := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		Temperature:       genai.Ptr(float32(cfg.Temperature)),
	}
	// The API rejects a JSON response type combined with tools; with search
	// enabled the instruction alone asks for JSON.
	if cfg.GoogleSearch {
		gen.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		gen.ResponseMIMEType = "application/json"
	}
	return gen
}

// Model returns the configured model name for logging.
func (v *Verifier) Model() string {
	return v.model
}

// Verify checks transcript and returns the parsed verdict with the raw reply.
func (v *Verifier) Verify(ctx context.Context, transcript string) (Result, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Result{}, services.Wrap(services.ErrValidation, "factcheck", "input", "", ErrEmptyTranscript)
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	raw, err := v.generateWithRetry(ctx, transcript)
	if err != nil {
		return Result{}, err
	}
	var result Result
	if err := decodeJSON(raw, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "factcheck", "decode", "gemini returned invalid JSON", err)
	}
	result.Raw = raw
	result.Accuracy = strings.TrimSpace(result.Accuracy)
	result.AccuracyReason = strings.TrimSpace(result.AccuracyReason)
	result.Reason = strings.TrimSpace(result.Reason)
	result.URLs = cleanURLs(result.URLs)
	return result, nil
}

func (v *Verifier) generateWithRetry(ctx context.Context, transcript string) (string, error) {
	contents := genai.Text(transcript)
	var lastErr error
	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		if err := v.limiter.Wait(ctx); err != nil {
			return "", services.Wrap(services.ErrTimeout, "factcheck", "rate limit", "", err)
		}
		key, err := v.keys.Acquire()
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "factcheck", "acquire key", "", err)
		}
		client := v.clients[key]

		v.logger.Debug("sending transcript for verification",
			logging.String("model", v.model),
			logging.Int("characters", len(transcript)),
			logging.Int("attempt", attempt),
		)
		resp, err := client.GenerateContent(ctx, v.model, contents, v.genConfig)
		if err == nil {
			text := ""
			if resp != nil {
				text = resp.Text()
			}
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			err = errEmptyResponse
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrTimeout, "factcheck", "generate", v.model, ctxErr)
		}
		if !retryable(err) || attempt == v.maxAttempts {
			break
		}
		delay := v.backoff(attempt)
		logging.WarnWithContext(v.logger, "gemini request failed; retrying", "factcheck_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api quota and key validity"),
			logging.String(logging.FieldImpact, "verification delayed"),
		)
		if err := sleep(ctx, delay); err != nil {
			return "", services.Wrap(services.ErrTimeout, "factcheck", "generate", v.model, err)
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "factcheck", "generate", v.model, lastErr)
}

var errEmptyResponse = errors.New("gemini response did not include any text")

func retryable(err error) bool {
	if errors.Is(err, errEmptyResponse) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

func (v *Verifier) backoff(attempt int) time.Duration {
	delay := v.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > v.maxDelay/2 {
			return v.maxDelay
		}
		delay *= 2
	}
	if v.maxDelay > 0 && delay > v.maxDelay {
		return v.maxDelay
	}
	return delay
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
