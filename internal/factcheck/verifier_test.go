package factcheck

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"veritas/internal/config"
	"veritas/internal/keypool"
	"veritas/internal/services"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	key     string
	calls   *[]string
	replies []reply
}

type reply struct {
	text string
	err  error
}

func (g *scriptedGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	*g.calls = append(*g.calls, g.key)
	next := reply{text: `{"accuracy":"50%","accuracy_reason":"default","reason":"default","urls":[]}`}
	if len(g.replies) > 0 {
		next = g.replies[0]
		g.replies = g.replies[1:]
	}
	if next.err != nil {
		return nil, next.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: next.text}}}}},
	}, nil
}

func testConfig() config.FactCheck {
	cfg := config.Default().FactCheck
	cfg.RequestsPerMinute = 60000
	cfg.TimeoutSeconds = 5
	return cfg
}

func newTestVerifier(t *testing.T, keys []string, script map[string][]reply) (*Verifier, *[]string) {
	t.Helper()
	calls := &[]string{}
	var mu sync.Mutex
	factory := func(_ context.Context, key string) (Generator, error) {
		mu.Lock()
		defer mu.Unlock()
		return &scriptedGenerator{key: key, calls: calls, replies: script[key]}, nil
	}
	v, err := New(context.Background(), testConfig(), keypool.New(keys),
		WithClientFactory(factory),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v, calls
}

func TestVerifyParsesFencedJSON(t *testing.T) {
	fenced := "```json\n{\"accuracy\":\"82%\",\"accuracy_reason\":\" well sourced \",\"reason\":\"matches reports\",\"urls\":[\"https://a.example\",\"https://a.example\",\" \"]}\n```"
	v, _ := newTestVerifier(t, []string{"k1"}, map[string][]reply{"k1": {{text: fenced}}})

	res, err := v.Verify(context.Background(), "The moon landing happened in 1969.")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Accuracy != "82%" || res.AccuracyReason != "well sourced" || res.Reason != "matches reports" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.URLs) != 1 || res.URLs[0] != "https://a.example" {
		t.Fatalf("urls = %v", res.URLs)
	}
	if res.Raw != fenced {
		t.Fatalf("raw payload not preserved: %q", res.Raw)
	}
}

func TestVerifyRotatesKeys(t *testing.T) {
	v, calls := newTestVerifier(t, []string{"k1", "k2"}, nil)
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), "claim"); err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
	}
	want := []string{"k1", "k2", "k1"}
	if len(*calls) != len(want) {
		t.Fatalf("calls = %v", *calls)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Fatalf("calls = %v, want %v", *calls, want)
		}
	}
}

func TestVerifyRetriesThrottling(t *testing.T) {
	throttled := genai.APIError{Code: 429, Message: "quota"}
	v, calls := newTestVerifier(t, []string{"k1", "k2"}, map[string][]reply{
		"k1": {{err: throttled}},
		"k2": {{text: `{"accuracy":"10%","accuracy_reason":"r","reason":"r","urls":[]}`}},
	})

	res, err := v.Verify(context.Background(), "claim")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Accuracy != "10%" {
		t.Fatalf("accuracy = %q", res.Accuracy)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected retry on second key, calls = %v", *calls)
	}
}

func TestVerifyDoesNotRetryClientErrors(t *testing.T) {
	v, calls := newTestVerifier(t, []string{"k1"}, map[string][]reply{
		"k1": {{err: genai.APIError{Code: 400, Message: "bad request"}}},
	})
	_, err := v.Verify(context.Background(), "claim")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected a single attempt, calls = %v", *calls)
	}
}

func TestVerifyRejectsInvalidJSON(t *testing.T) {
	v, _ := newTestVerifier(t, []string{"k1"}, map[string][]reply{"k1": {{text: "I cannot answer that."}}})
	_, err := v.Verify(context.Background(), "claim")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestVerifyRejectsEmptyTranscript(t *testing.T) {
	v, calls := newTestVerifier(t, []string{"k1"}, nil)
	_, err := v.Verify(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyTranscript) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected empty transcript validation error, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("no request expected, calls = %v", *calls)
	}
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := New(context.Background(), testConfig(), keypool.New(nil))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildGenerateConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GoogleSearch = true
	gen := buildGenerateConfig(cfg)
	if len(gen.Tools) != 1 || gen.Tools[0].GoogleSearch == nil {
		t.Fatalf("expected google search tool, got %+v", gen.Tools)
	}
	if gen.ResponseMIMEType != "" {
		t.Fatalf("json mime type must not be combined with tools")
	}

	cfg.GoogleSearch = false
	cfg.SystemInstruction = "custom"
	gen = buildGenerateConfig(cfg)
	if gen.ResponseMIMEType != "application/json" || len(gen.Tools) != 0 {
		t.Fatalf("unexpected config without search: %+v", gen)
	}
	if gen.SystemInstruction.Parts[0].Text != "custom" {
		t.Fatalf("system instruction = %q", gen.SystemInstruction.Parts[0].Text)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain", `{"reason":"x"}`, false},
		{"fenced", "```json\n{\"reason\":\"x\"}\n```", false},
		{"bare fence", "```\n{\"reason\":\"x\"}\n```", false},
		{"prose around", "Here you go: {\"reason\":\"x\"} hope it helps", false},
		{"empty", "  ", true},
		{"no json", "nothing here", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out Result
			err := decodeJSON(tc.in, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeJSON failed: %v", err)
			}
			if out.Reason != "x" {
				t.Fatalf("reason = %q", out.Reason)
			}
		})
	}
}
