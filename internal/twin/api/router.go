// Package api serves the Store Backend's reward REST routes from the twin's
// in-memory state.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/wondertwin-ai/rewardcatalog/internal/backend"
	"github.com/wondertwin-ai/rewardcatalog/internal/twin/store"
	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

// Handler holds all API handler state.
type Handler struct {
	store   *store.MemoryStore
	mw      *twincore.Middleware
	cfg     twincore.ConfigSource
	metrics *twincore.Metrics
	logger  *slog.Logger

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHandler creates a new API handler. metrics may be nil.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, cfg twincore.ConfigSource, metrics *twincore.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		mw:       mw,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Routes mounts the API endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route(backend.Namespace, func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Use(h.rateLimit)
		r.Use(h.mw.FaultInjection)
		r.Use(h.mw.IdempotentPost)

		r.Get("/rewards", h.ListRewards)
		r.Post("/rewards", h.CreateReward)
		r.Put("/rewards/{id:[0-9]+}", h.UpdateReward)
		r.Delete("/rewards/{id:[0-9]+}", h.DeleteReward)

		r.Get("/stores", h.ListStores)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			twincore.Error(w, http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method.")
		})
	})
}

// authMiddleware checks the X-WP-Nonce header. With no nonce configured any
// non-empty nonce is accepted.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce := r.Header.Get(backend.NonceHeader)
		if nonce == "" {
			twincore.Error(w, http.StatusUnauthorized, "rest_not_logged_in", "You are not currently logged in.")
			return
		}
		if want := h.cfg.Current().Nonce; want != "" && nonce != want {
			twincore.Error(w, http.StatusForbidden, "rest_cookie_invalid_nonce", "Cookie check failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiter returns the token bucket for nonce, retuned to the current limit.
func (h *Handler) limiter(nonce string, limit float64) *rate.Limiter {
	burst := max(1, int(limit))

	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	l, ok := h.limiters[nonce]
	if !ok {
		l = rate.NewLimiter(rate.Limit(limit), burst)
		h.limiters[nonce] = l
		return l
	}
	if l.Limit() != rate.Limit(limit) {
		l.SetLimit(rate.Limit(limit))
		l.SetBurst(burst)
	}
	return l
}

// rateLimit enforces the per-nonce request rate and reports it in
// X-RateLimit-* headers. A zero limit disables it.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := h.cfg.Current().RateLimit
		if limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		l := h.limiter(r.Header.Get(backend.NonceHeader), limit)
		allowed := l.Allow()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(l.Tokens()))))
		if !allowed {
			w.Header().Set("Retry-After", "1")
			twincore.Error(w, http.StatusTooManyRequests, "rest_rate_limited", "Too many requests.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResetLimits forgets every token bucket.
func (h *Handler) ResetLimits() {
	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	h.limiters = make(map[string]*rate.Limiter)
}
