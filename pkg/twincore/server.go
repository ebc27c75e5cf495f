// Package twincore provides the base HTTP server, CLI flags, middleware chain,
// metrics and response helpers of the Store Backend twin.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
)

// Config holds the twin configuration, parsed from CLI flags.
type Config struct {
	Port      int
	Latency   time.Duration
	FailRate  float64
	SeedFile  string
	Nonce     string  // expected X-WP-Nonce; empty accepts any non-empty nonce
	RateLimit float64 // requests per second per nonce; 0 disables limiting
	Verbose   bool
	Name      string // twin name for logging
}

// ConfigSource yields the configuration in effect right now.
type ConfigSource interface {
	Current() Config
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig Config

func (s StaticConfig) Current() Config { return Config(s) }

// ParseFlags parses the twin's CLI flags from args.
func ParseFlags(name string, args []string) (*Config, error) {
	cfg := &Config{Name: name}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 0, "HTTP listen port (default: $PORT or 4300)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "Path to JSON (comments allowed) fixture for initial state")
	fs.StringVar(&cfg.Nonce, "nonce", "", "Require this X-WP-Nonce value (default: any non-empty nonce)")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", 20, "Requests per second allowed per nonce (0 disables)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable request/response logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
			}
			cfg.Port = port
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 4300
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("--fail-rate must be between 0.0 and 1.0")
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("--rate-limit must not be negative")
	}
	return cfg, nil
}

// NewLogger returns the twin's JSON logger, at debug level when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Twin is the base server. It wraps a chi router with the common middleware
// and provides lifecycle management.
type Twin struct {
	Router  *chi.Mux
	Logger  *slog.Logger
	Metrics *Metrics
	mw      *Middleware

	mu     sync.RWMutex // protects config during runtime updates
	config Config
}

// New creates a Twin. A nil logger selects NewLogger(cfg.Verbose).
func New(cfg *Config, logger *slog.Logger) *Twin {
	if logger == nil {
		logger = NewLogger(cfg.Verbose)
	}

	t := &Twin{
		Router:  chi.NewRouter(),
		Logger:  logger,
		Metrics: NewMetrics(),
		config:  *cfg,
	}
	t.mw = NewMiddleware(t, logger)

	// Latency and failure middleware are always mounted so runtime config
	// updates take effect immediately; both check the current values.
	t.Router.Use(chimw.RequestID)
	t.Router.Use(chimw.RealIP)
	t.Router.Use(t.mw.CORS)
	t.Router.Use(t.Metrics.Instrument)
	t.Router.Use(t.mw.RequestLog)
	t.Router.Use(t.mw.LatencyInjection)
	t.Router.Use(t.mw.RandomFailure)

	t.Router.Method(http.MethodGet, "/metrics", t.Metrics.Handler())
	return t
}

// Middleware returns the middleware instance for route groups and the
// admin plane.
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// Current returns a copy of the configuration in effect.
func (t *Twin) Current() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	cfg := t.Current()
	return map[string]any{
		"name":       cfg.Name,
		"port":       cfg.Port,
		"latency":    cfg.Latency.String(),
		"fail_rate":  cfg.FailRate,
		"rate_limit": cfg.RateLimit,
		"verbose":    cfg.Verbose,
	}
}

// UpdateConfig updates runtime configuration fields from a map.
// This implements the admin.ConfigProvider interface.
// Only latency, fail_rate, rate_limit and verbose can change at runtime.
// All fields are validated before any are applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	type configUpdate struct {
		latency   *time.Duration
		failRate  *float64
		rateLimit *float64
		verbose   *bool
	}
	var cu configUpdate

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			cu.latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			cu.failRate = &f
		case "rate_limit":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("rate_limit must be a number")
			}
			if f < 0 {
				return fmt.Errorf("rate_limit must not be negative")
			}
			cu.rateLimit = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			cu.verbose = &b
		case "name", "port", "nonce", "seed_file":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cu.latency != nil {
		t.config.Latency = *cu.latency
	}
	if cu.failRate != nil {
		t.config.FailRate = *cu.failRate
	}
	if cu.rateLimit != nil {
		t.config.RateLimit = *cu.rateLimit
	}
	if cu.verbose != nil {
		t.config.Verbose = *cu.verbose
	}
	return nil
}

// Serve starts the HTTP server and blocks until ctx is done or an interrupt
// or SIGTERM arrives, then shuts down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Current().Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", "name", t.Current().Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	t.Logger.Info("shutting down twin", "name", t.Current().Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes an error in the WordPress REST shape:
// {"code": ..., "message": ..., "data": {"status": ...}}.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]any{
		"code":    code,
		"message": message,
		"data":    map[string]any{"status": status},
	})
}
