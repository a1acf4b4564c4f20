package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"veritas/internal/cache"
	"veritas/internal/canonical"
	"veritas/internal/logging"
	"veritas/internal/pipeline"
	"veritas/internal/services"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
)

// Analyzer runs or replays analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// Records reads stored analyses.
type Records interface {
	Lookup(ctx context.Context, canonicalURL, videoID string) (*cache.Record, error)
	List(ctx context.Context, limit int) ([]*cache.Record, error)
}

// TextVerifier fact-checks and records free text.
type TextVerifier interface {
	Enabled() bool
	VerifyText(ctx context.Context, text string) (*cache.Verification, error)
}

// VerifyTextRequest is the body of POST /api/verify-text.
type VerifyTextRequest struct {
	Text string `json:"text"`
}

// VerificationResponse wraps a stored text verification.
type VerificationResponse struct {
	Verification *cache.Verification `json:"verification"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Policy       string `json:"policy,omitempty"`
	Verification bool   `json:"verification"`
}

// RecordsResponse is returned when listing records.
type RecordsResponse struct {
	Records []*cache.Record `json:"records"`
}

// RecordResponse wraps a single record.
type RecordResponse struct {
	Record *cache.Record `json:"record"`
	Cached bool          `json:"cached"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// Server serves the JSON API.
type Server struct {
	bind     string
	policy   string
	analyzer Analyzer
	records  Records
	verifier TextVerifier
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New builds a Server. policy is reported by the health endpoint.
func New(bind, policy string, analyzer Analyzer, records Records, logger *slog.Logger) *Server {
	s := &Server{
		bind:     strings.TrimSpace(bind),
		policy:   policy,
		analyzer: analyzer,
		records:  records,
		logger:   logging.NewComponentLogger(logger, "httpapi"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// SetTextVerifier enables POST /api/verify-text. Without one the route
// answers 503.
func (s *Server) SetTextVerifier(verifier TextVerifier) {
	s.verifier = verifier
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/videos/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/videos", s.handleVideos)
	mux.HandleFunc("/api/verify-text", s.handleVerifyText)
	return mux
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Policy:       s.policy,
		Verification: s.verifier != nil && s.verifier.Enabled(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req pipeline.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.writeFailure(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: resp.Record, Cached: resp.Cached})
}

func (s *Server) handleVerifyText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req VerifyTextRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.verifier == nil {
		s.writeFailure(r.Context(), w, services.Wrap(services.ErrConfiguration, "verify", "factcheck", "fact checking is disabled", nil))
		return
	}

	verification, err := s.verifier.VerifyText(r.Context(), req.Text)
	if err != nil {
		s.writeFailure(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, VerificationResponse{Verification: verification})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	rawURL := strings.TrimSpace(query.Get("url"))
	videoID := strings.TrimSpace(query.Get("video_id"))

	if rawURL == "" && videoID == "" {
		limit := defaultListLimit
		if value := strings.TrimSpace(query.Get("limit")); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 0 {
				s.writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		records, err := s.records.List(r.Context(), limit)
		if err != nil {
			s.writeFailure(r.Context(), w, err)
			return
		}
		if records == nil {
			records = []*cache.Record{}
		}
		s.writeJSON(w, http.StatusOK, RecordsResponse{Records: records})
		return
	}

	canonicalURL := ""
	if rawURL != "" {
		canon, err := canonical.Canonicalize(rawURL)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		canonicalURL = canon.URL
		if videoID == "" {
			videoID = canon.VideoID
		}
	}
	rec, err := s.records.Lookup(r.Context(), canonicalURL, videoID)
	if err != nil {
		s.writeFailure(r.Context(), w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "no analysis recorded for this video")
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: rec, Cached: true})
}

// StatusFor maps a classified error to an HTTP status code.
func StatusFor(err error) int {
	switch services.Classify(err) {
	case services.CategoryValidation:
		return http.StatusUnprocessableEntity
	case services.CategoryTimeout:
		return http.StatusGatewayTimeout
	case services.CategoryExternalTool:
		return http.StatusBadGateway
	case services.CategoryNotFound:
		return http.StatusNotFound
	case services.CategoryConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Client went away; nothing useful to write.
		return
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "request failed", "api_request_failed",
			logging.Error(err),
			logging.Int("status", status),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Category: string(services.Classify(err))})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
