package twincore

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/zeebo/blake3"
)

// RequestLogEntry is one request as seen by the twin, for /admin/requests.
type RequestLogEntry struct {
	Timestamp      time.Time         `json:"timestamp"`
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	Headers        map[string]string `json:"headers,omitempty"`
	StatusCode     int               `json:"status_code"`
	Duration       time.Duration     `json:"duration_ms"`
	RequestID      string            `json:"request_id,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Replayed       bool              `json:"replayed,omitempty"`
}

// RequestLog keeps the most recent requests in a fixed-size ring.
type RequestLog struct {
	mu    sync.RWMutex
	ring  []RequestLogEntry
	next  int
	count int
}

// NewRequestLog creates a request log holding at most size entries.
func NewRequestLog(size int) *RequestLog {
	return &RequestLog{ring: make([]RequestLogEntry, max(size, 1))}
}

// Add records entry, overwriting the oldest once the ring is full.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.ring[rl.next] = entry
	rl.next = (rl.next + 1) % len(rl.ring)
	rl.count = min(rl.count+1, len(rl.ring))
}

// Entries returns the recorded requests, oldest first.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, 0, rl.count)
	first := (rl.next - rl.count + len(rl.ring)) % len(rl.ring)
	for i := range rl.count {
		out = append(out, rl.ring[(first+i)%len(rl.ring)])
	}
	return out
}

// Clear forgets every entry.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	clear(rl.ring)
	rl.next, rl.count = 0, 0
}

// FaultConfig is an injected failure for one request path. Method limits it
// to one HTTP method, e.g. failing creates while listing still works.
type FaultConfig struct {
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body,omitempty"`
	Delay      time.Duration `json:"delay_ms,omitempty"`
	Rate       float64       `json:"rate"` // 0.0-1.0
	Method     string        `json:"method,omitempty"`
}

func (f FaultConfig) applies(method string) bool {
	return f.Method == "" || strings.EqualFold(f.Method, method)
}

// FaultRegistry holds the injected faults by request path.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]FaultConfig)}
}

// Set registers fault for path, replacing any earlier one. A zero rate
// fires on every request.
func (fr *FaultRegistry) Set(path string, fault FaultConfig) {
	if fault.Rate == 0 {
		fault.Rate = 1
	}
	fault.Method = strings.ToUpper(fault.Method)
	fr.mu.Lock()
	fr.faults[path] = fault
	fr.mu.Unlock()
}

// Remove drops the fault for path and reports whether there was one.
func (fr *FaultRegistry) Remove(path string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if _, ok := fr.faults[path]; !ok {
		return false
	}
	delete(fr.faults, path)
	return true
}

// Check returns the fault that fires for a method+path request, or nil.
func (fr *FaultRegistry) Check(method, path string) *FaultConfig {
	fr.mu.RLock()
	f, ok := fr.faults[path]
	fr.mu.RUnlock()
	if !ok || !f.applies(method) {
		return nil
	}
	if f.Rate < 1 && rand.Float64() >= f.Rate {
		return nil
	}
	return &f
}

// All returns a copy of the registered faults.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return maps.Clone(fr.faults)
}

// Reset removes every fault.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clear(fr.faults)
}

// IdempotencyTracker remembers the successful response to each
// Idempotency-Key together with a fingerprint of the request body that
// produced it.
type IdempotencyTracker struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
}

type idempotencyEntry struct {
	Fingerprint [32]byte
	StatusCode  int
	Body        []byte
	CreatedAt   time.Time
}

// Fingerprint hashes a request body for comparison against a cached key.
func Fingerprint(body []byte) [32]byte {
	return blake3.Sum256(body)
}

// NewIdempotencyTracker creates a new tracker.
func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{
		entries: make(map[string]idempotencyEntry),
	}
}

// Lookup reports the cached response for key. conflict is true when the key
// was first used with a different request body; the cached response must
// not be replayed then.
func (it *IdempotencyTracker) Lookup(key string, fingerprint [32]byte) (status int, body []byte, found, conflict bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	e, ok := it.entries[key]
	if !ok {
		return 0, nil, false, false
	}
	if e.Fingerprint != fingerprint {
		return 0, nil, true, true
	}
	return e.StatusCode, e.Body, true, false
}

// Store caches the response to a request whose body had fingerprint.
func (it *IdempotencyTracker) Store(key string, fingerprint [32]byte, statusCode int, body []byte) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries[key] = idempotencyEntry{
		Fingerprint: fingerprint,
		StatusCode:  statusCode,
		Body:        body,
		CreatedAt:   time.Now(),
	}
}

// Len returns the number of cached keys.
func (it *IdempotencyTracker) Len() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return len(it.entries)
}

// Reset forgets every key. Cached responses name reward ids, so they go
// stale whenever the twin's state is replaced.
func (it *IdempotencyTracker) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries = make(map[string]idempotencyEntry)
}

// Middleware provides the common middleware functions.
type Middleware struct {
	cfg        ConfigSource
	logger     *slog.Logger
	ReqLog     *RequestLog
	Faults     *FaultRegistry
	Idempotent *IdempotencyTracker
}

// NewMiddleware creates a new Middleware instance reading settings from cfg.
func NewMiddleware(cfg ConfigSource, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		cfg:        cfg,
		logger:     logger,
		ReqLog:     NewRequestLog(1000),
		Faults:     NewFaultRegistry(),
		Idempotent: NewIdempotencyTracker(),
	}
}

// CORS adds permissive CORS headers.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Idempotency-Key, X-WP-Nonce")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLog middleware captures request details into the ring buffer.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		verbose := m.cfg.Current().Verbose
		entry := RequestLogEntry{
			Timestamp:      start,
			Method:         r.Method,
			Path:           r.URL.Path,
			StatusCode:     rec.statusCode,
			Duration:       time.Since(start),
			RequestID:      chimw.GetReqID(r.Context()),
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
			Replayed:       rec.Header().Get("Idempotent-Replayed") == "true",
		}
		if verbose {
			entry.Headers = make(map[string]string)
			for k := range r.Header {
				entry.Headers[k] = r.Header.Get(k)
			}
		}
		m.ReqLog.Add(entry)

		if verbose {
			m.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"duration", time.Since(start),
				"request_id", entry.RequestID,
			)
		}
	})
}

// LatencyInjection adds the configured latency, with jitter, to every request.
func (m *Middleware) LatencyInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency := m.cfg.Current().Latency; latency > 0 {
			// 80-120% of configured latency
			jitter := 0.8 + rand.Float64()*0.4
			time.Sleep(time.Duration(float64(latency) * jitter))
		}
		next.ServeHTTP(w, r)
	})
}

// RandomFailure returns 500 errors at the configured fail rate.
func (m *Middleware) RandomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rate := m.cfg.Current().FailRate; rate > 0 && rand.Float64() < rate {
			Error(w, http.StatusInternalServerError, "simulated_failure", "simulated random failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection applies any fault registered for the request path. Mount
// it inside route groups so admin endpoints are never affected.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fault := m.Faults.Check(r.Method, r.URL.Path); fault != nil {
			if fault.Delay > 0 {
				time.Sleep(fault.Delay)
			}
			if fault.StatusCode > 0 {
				if fault.Body != "" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(fault.StatusCode)
					fmt.Fprint(w, fault.Body)
				} else {
					Error(w, fault.StatusCode, "injected_fault", "injected fault")
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// bodyRecorder captures response status and body for idempotency caching.
type bodyRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// IdempotentPost replays the cached response of a POST carrying an
// Idempotency-Key seen before with the same body. The same key with a
// different body is refused with 422 idempotency_key_in_use. Only 2xx
// responses are cached, so a failed attempt can be retried under the same
// key.
func (m *Middleware) IdempotentPost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			Error(w, http.StatusBadRequest, "rest_invalid_json", "failed to read body: "+err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(payload))
		fingerprint := Fingerprint(payload)

		status, body, found, conflict := m.Idempotent.Lookup(key, fingerprint)
		if conflict {
			m.logger.Warn("idempotency key reused with a different body", "key", key)
			Error(w, http.StatusUnprocessableEntity, "idempotency_key_in_use",
				"this Idempotency-Key was already used with a different request body")
			return
		}
		if found {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(status)
			w.Write(body)
			return
		}
		rec := &bodyRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.statusCode >= 200 && rec.statusCode < 300 {
			m.Idempotent.Store(key, fingerprint, rec.statusCode, rec.body.Bytes())
		}
	})
}
