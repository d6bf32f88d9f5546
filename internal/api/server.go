package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/metrics"
	"github.com/JakeFAU/guugle/internal/ranker"
)

// DefaultAmount is the number of results returned when amount is omitted.
const DefaultAmount = 10

// Searcher ranks pages for a query.
type Searcher interface {
	Rank(ctx context.Context, query string, limit int) ([]ranker.RankedPage, error)
}

// Config controls the HTTP server.
type Config struct {
	// APIKey, when set, is required in the X-API-Key header or api_key query parameter.
	APIKey         string
	RequestTimeout time.Duration
	MaxAmount      int
}

// Server wires HTTP handlers to the ranker.
type Server struct {
	router   chi.Router
	searcher Searcher
	ids      requestIDs
	cfg      Config
	logger   *zap.Logger
}

type requestIDs interface {
	NewRequestID() string
}

// SearchResult is one ranked page in a search response.
type SearchResult struct {
	Rank    int            `json:"rank"`
	ID      crawler.PageID `json:"id"`
	URL     string         `json:"url"`
	Score   int            `json:"score"`
	Visited bool           `json:"visited"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, ids requestIDs, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		searcher: searcher,
		ids:      ids,
		cfg:      cfg,
		logger:   logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Get("/search", s.search)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"), s.cfg.MaxAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked, err := s.searcher.Rank(r.Context(), query, amount)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		s.writeError(w, status, "search failed")
		return
	}

	resp := SearchResponse{Query: query, Results: make([]SearchResult, 0, len(ranked))}
	for i, page := range ranked {
		resp.Results = append(resp.Results, SearchResult{
			Rank:    i + 1,
			ID:      page.ID,
			URL:     page.URL,
			Score:   page.Score,
			Visited: page.Visited,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func parseAmount(raw string, maxAmount int) (int, error) {
	if raw == "" {
		return DefaultAmount, nil
	}
	amount, err := strconv.Atoi(raw)
	if err != nil || amount < 1 {
		return 0, fmt.Errorf("amount must be a positive integer, got %q", raw)
	}
	if maxAmount > 0 && amount > maxAmount {
		amount = maxAmount
	}
	return amount, nil
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" && s.ids != nil {
			reqID = s.ids.NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("error", rec),
				)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

// RequestID returns the request id stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
