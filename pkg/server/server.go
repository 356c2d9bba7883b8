// Package server is the HTTP shell around the admission engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/manenim/ratelimitd/pkg/limiter"
	"github.com/manenim/ratelimitd/pkg/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// DefaultClientID is used when a POST /check body names no client.
const DefaultClientID = "default"

type Options struct {
	Engine *limiter.Engine

	// Defaults fill fields omitted from a POST /check body.
	Defaults limiter.Policy

	// LoadTestClientID and LoadTest are the fixed arguments of GET /check.
	LoadTestClientID string
	LoadTest         limiter.Policy

	Logger         zerolog.Logger
	Registry       *prometheus.Registry
	PrometheusPath string
	MaxBodyBytes   int64
}

type Server struct {
	opts    Options
	metrics *obs.HTTPMetrics
	known   map[string]struct{}
}

// New builds the server and registers its HTTP metrics on opts.Registry
// (a fresh registry when nil).
func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.PrometheusPath == "" {
		opts.PrometheusPath = "/prometheus"
	}
	return &Server{
		opts:    opts,
		metrics: obs.NewHTTPMetrics(opts.Registry),
		known: map[string]struct{}{
			"/check":            {},
			"/health":           {},
			"/ready":            {},
			"/metrics":          {},
			opts.PrometheusPath: {},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /check", s.handleCheck)
	mux.HandleFunc("GET /check", s.handleLoadTestCheck)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET "+s.opts.PrometheusPath, promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	return Chain(mux,
		obs.Logger(s.opts.Logger),
		s.metrics.Middleware(s.known),
		CORS(),
		Recover(),
		BodyLimit(s.opts.MaxBodyBytes),
	)
}

type checkRequest struct {
	ClientID   *string      `json:"client_id"`
	Capacity   *json.Number `json:"capacity"`
	RefillRate *float64     `json:"refill_rate"`
	Tokens     *json.Number `json:"tokens"`
}

// decodeCheckRequest reads exactly one JSON object. An empty body means
// "all defaults"; null, non-objects and trailing content are rejected.
func decodeCheckRequest(r io.Reader) (checkRequest, error) {
	dec := json.NewDecoder(r)
	var body *checkRequest
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return checkRequest{}, nil
		}
		return checkRequest{}, err
	}
	if body == nil {
		return checkRequest{}, errors.New("request body must be a JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return checkRequest{}, errors.New("unexpected data after JSON object")
	}
	return *body, nil
}

func (c checkRequest) resolve(def limiter.Policy) (string, limiter.Policy, error) {
	clientID := DefaultClientID
	if c.ClientID != nil {
		clientID = *c.ClientID
	}
	p := def
	if c.Capacity != nil {
		v, err := integer("capacity", *c.Capacity)
		if err != nil {
			return "", p, err
		}
		p.Capacity = v
	}
	if c.RefillRate != nil {
		p.RefillRate = *c.RefillRate
	}
	if c.Tokens != nil {
		v, err := integer("tokens", *c.Tokens)
		if err != nil {
			return "", p, err
		}
		p.Requested = v
	}
	return clientID, p, nil
}

// integer accepts integral JSON numbers, including forms like 10.0 or 1e3.
func integer(field string, n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be an integer, got %s", field, n)
	}
	return int64(f), nil
}

type checkResponse struct {
	Allowed         bool    `json:"allowed"`
	RemainingTokens float64 `json:"remaining_tokens"`
	RetryAfterMS    int64   `json:"retry_after_ms"`
	LatencyUS       int64   `json:"latency_us"`
}

type loadTestResponse struct {
	Allowed   bool    `json:"allowed"`
	Remaining float64 `json:"remaining"`
	LatencyUS int64   `json:"latency_us"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := decodeCheckRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clientID, p, err := body.resolve(s.opts.Defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dec, ok := s.evaluate(r.Context(), w, clientID, p)
	if !ok {
		return
	}

	setRetryAfter(w, dec)
	writeJSON(w, statusFor(dec), checkResponse{
		Allowed:         dec.Allowed,
		RemainingTokens: dec.Remaining,
		RetryAfterMS:    dec.RetryAfterMillis(),
		LatencyUS:       time.Since(start).Microseconds(),
	})
}

func (s *Server) handleLoadTestCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dec, ok := s.evaluate(r.Context(), w, s.opts.LoadTestClientID, s.opts.LoadTest)
	if !ok {
		return
	}

	writeJSON(w, statusFor(dec), loadTestResponse{
		Allowed:   dec.Allowed,
		Remaining: dec.Remaining,
		LatencyUS: time.Since(start).Microseconds(),
	})
}

func (s *Server) evaluate(ctx context.Context, w http.ResponseWriter, clientID string, p limiter.Policy) (limiter.Decision, bool) {
	dec, err := s.opts.Engine.Evaluate(ctx, clientID, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return limiter.Decision{}, false
	}
	if dec.FailOpen {
		zerolog.Ctx(ctx).Debug().Str("client_id", clientID).Msg("decision failed open")
	}
	return dec, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Engine.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("bucket store not ready")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Engine.Counters().Snapshot())
}

func statusFor(dec limiter.Decision) int {
	if dec.Allowed {
		return http.StatusOK
	}
	return http.StatusTooManyRequests
}

// setRetryAfter mirrors the hint in the standard header, in whole seconds.
func setRetryAfter(w http.ResponseWriter, dec limiter.Decision) {
	if dec.Allowed || dec.RetryAfter <= 0 {
		return
	}
	secs := int64(math.Ceil(dec.RetryAfter.Seconds()))
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
