package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"veritas/internal/cache"
	"veritas/internal/httpapi"
	"veritas/internal/pipeline"
	"veritas/internal/services"
	"veritas/internal/testsupport"
	"veritas/internal/verdict"
)

type analyzerStub struct {
	resp pipeline.Response
	err  error
	got  []pipeline.Request
}

func (a *analyzerStub) Analyze(_ context.Context, req pipeline.Request) (pipeline.Response, error) {
	a.got = append(a.got, req)
	return a.resp, a.err
}

func newServer(t *testing.T, analyzer httpapi.Analyzer) (http.Handler, *cache.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	srv := httpapi.New(cfg.API.Bind, "band", analyzer, store, nil)
	return srv.Handler(), store
}

func seed(t *testing.T, store *cache.Store, url, videoID string) *cache.Record {
	t.Helper()
	rec, err := store.Upsert(context.Background(), cache.Record{
		CanonicalURL:  url,
		VideoID:       videoID,
		ArtifactScore: 0.55,
		MotionScore:   8,
		Verdict:       verdict.LikelyAuthentic,
		Policy:        "band",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func TestHealth(t *testing.T) {
	handler, _ := newServer(t, &analyzerStub{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp httpapi.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Policy != "band" {
		t.Fatalf("unexpected health: %+v", resp)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	stub := &analyzerStub{resp: pipeline.Response{Record: &cache.Record{
		ID:           "rec-1",
		CanonicalURL: "https://example.com/clip",
		Verdict:      verdict.LikelySynthetic,
	}}}
	handler, _ := newServer(t, stub)

	body := strings.NewReader(`{"url":"https://example.com/clip","force":true}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/videos/analyze", body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp httpapi.RecordResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Record.ID != "rec-1" || resp.Record.Verdict != verdict.LikelySynthetic {
		t.Fatalf("unexpected record: %+v", resp.Record)
	}
	if len(stub.got) != 1 || !stub.got[0].Force || stub.got[0].URL != "https://example.com/clip" {
		t.Fatalf("unexpected forwarded request: %+v", stub.got)
	}
}

func TestAnalyzeEndpointRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"link":"x"}`, http.StatusBadRequest},
		{"missing url", http.MethodPost, `{"force":true}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &analyzerStub{}
			handler, _ := newServer(t, stub)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tc.method, "/api/videos/analyze", strings.NewReader(tc.body)))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
			if len(stub.got) != 0 {
				t.Fatal("analyzer should not be called")
			}
		})
	}
}

func TestAnalyzeEndpointMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.Wrap(services.ErrValidation, "sample", "count", "", pipeline.ErrTooFewSamples), http.StatusUnprocessableEntity},
		{"timeout", services.Wrap(services.ErrTimeout, "analyze", "pipeline", "", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"external tool", services.Wrap(services.ErrExternalTool, "acquire", "yt-dlp download", "", errors.New("403")), http.StatusBadGateway},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := newServer(t, &analyzerStub{err: tc.err})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/videos/analyze", strings.NewReader(`{"url":"https://example.com/x"}`)))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] == "" {
				t.Fatalf("expected error body, got %s", w.Body.String())
			}
		})
	}
}

func TestVideosLookup(t *testing.T) {
	handler, store := newServer(t, &analyzerStub{})
	stored := seed(t, store, "https://www.youtube.com/watch?v=abc123def45", "abc123def45")

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"short url", "?url=https://youtu.be/abc123def45", http.StatusOK},
		{"video id", "?video_id=abc123def45", http.StatusOK},
		{"miss", "?url=https://example.com/other", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos"+tc.query, nil))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.want != http.StatusOK {
				return
			}
			var resp httpapi.RecordResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Record == nil || resp.Record.ID != stored.ID {
				t.Fatalf("unexpected record: %+v", resp.Record)
			}
		})
	}
}

func TestVideosList(t *testing.T) {
	handler, store := newServer(t, &analyzerStub{})
	seed(t, store, "https://example.com/a", "")
	seed(t, store, "https://example.com/b", "")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp httpapi.RecordsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(resp.Records))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	if got := httpapi.StatusFor(services.Wrap(services.ErrNotFound, "lookup", "", "", nil)); got != http.StatusNotFound {
		t.Fatalf("not found status = %d", got)
	}
	if got := httpapi.StatusFor(context.DeadlineExceeded); got != http.StatusGatewayTimeout {
		t.Fatalf("deadline status = %d", got)
	}
}

type verifierStub struct {
	enabled bool
	result  *cache.Verification
	err     error
	got     []string
}

func (v *verifierStub) Enabled() bool {
	return v.enabled
}

func (v *verifierStub) VerifyText(_ context.Context, text string) (*cache.Verification, error) {
	v.got = append(v.got, text)
	return v.result, v.err
}

func newVerifyServer(t *testing.T, verifier httpapi.TextVerifier) http.Handler {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	srv := httpapi.New(cfg.API.Bind, "band", &analyzerStub{}, testsupport.MustOpenStore(t, cfg), nil)
	if verifier != nil {
		srv.SetTextVerifier(verifier)
	}
	return srv.Handler()
}

func TestVerifyTextEndpoint(t *testing.T) {
	stub := &verifierStub{enabled: true, result: &cache.Verification{
		ID:               "ver-1",
		InputText:        "Water boils at 100C at sea level.",
		Accuracy:         "98%",
		Reason:           "Standard physical constant.",
		URLs:             []string{"https://example.com/water"},
		RawModelResponse: `{"accuracy":"98%"}`,
	}}
	handler := newVerifyServer(t, stub)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"text":"Water boils at 100C at sea level."}`)
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verify-text", body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp httpapi.VerificationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Verification == nil || resp.Verification.ID != "ver-1" || resp.Verification.RawModelResponse != `{"accuracy":"98%"}` {
		t.Fatalf("unexpected verification: %+v", resp.Verification)
	}
	if len(stub.got) != 1 || stub.got[0] != "Water boils at 100C at sea level." {
		t.Fatalf("unexpected forwarded text: %v", stub.got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health httpapi.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.Verification {
		t.Fatal("health should report verification enabled")
	}
}

func TestVerifyTextEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		verifier httpapi.TextVerifier
		method   string
		body     string
		want     int
	}{
		{"wrong method", &verifierStub{enabled: true}, http.MethodGet, "", http.StatusMethodNotAllowed},
		{"blank text", &verifierStub{enabled: true}, http.MethodPost, `{"text":"  "}`, http.StatusBadRequest},
		{"unknown field", &verifierStub{enabled: true}, http.MethodPost, `{"claim":"x"}`, http.StatusBadRequest},
		{"not configured", nil, http.MethodPost, `{"text":"claim"}`, http.StatusServiceUnavailable},
		{"gemini failure", &verifierStub{enabled: true, err: services.Wrap(services.ErrExternalTool, "factcheck", "generate", "", errors.New("500"))}, http.MethodPost, `{"text":"claim"}`, http.StatusBadGateway},
		{"configuration failure", &verifierStub{err: services.Wrap(services.ErrConfiguration, "verify", "factcheck", "disabled", nil)}, http.MethodPost, `{"text":"claim"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newVerifyServer(t, tc.verifier)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tc.method, "/api/verify-text", strings.NewReader(tc.body)))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}
