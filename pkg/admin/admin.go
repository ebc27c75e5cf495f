// Package admin provides the /admin/* control plane of the Store Backend
// twin: state management, fault injection, runtime config and inspection.
package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

// StateStore is the interface a twin must implement to support admin state management.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot() any
	// LoadState replaces the full state from a JSON body.
	LoadState(data []byte) error
	// Reset clears all state and reloads seed data.
	Reset() error
}

// ConfigProvider exposes runtime configuration. *twincore.Twin implements it.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Handler provides the admin endpoints.
type Handler struct {
	state  StateStore
	mw     *twincore.Middleware
	config ConfigProvider
}

// NewHandler creates a new admin handler. config may be nil, in which case
// the /admin/config endpoints answer 404.
func NewHandler(state StateStore, mw *twincore.Middleware, config ConfigProvider) *Handler {
	return &Handler{
		state:  state,
		mw:     mw,
		config: config,
	}
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Post("/fault/*", h.handleInjectFault)
		r.Delete("/fault/*", h.handleRemoveFault)
		r.Get("/faults", h.handleListFaults)
		r.Get("/requests", h.handleGetRequests)
		r.Get("/config", h.handleGetConfig)
		r.Patch("/config", h.handleUpdateConfig)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Reset(); err != nil {
		twincore.Error(w, http.StatusInternalServerError, "admin_reset_failed", "failed to reset state: "+err.Error())
		return
	}
	h.mw.ReqLog.Clear()
	h.mw.Faults.Reset()
	h.mw.Idempotent.Reset()
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "admin_bad_request", "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "admin_bad_state", "failed to load state: "+err.Error())
		return
	}
	// Cached create responses name ids of the replaced state.
	h.mw.Idempotent.Reset()
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

// faultPath turns the wildcard of /admin/fault/* into the request path the
// fault applies to, e.g. /admin/fault/wp-json/pizza-rewards/v1/rewards.
func faultPath(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultPath(r)

	var fault twincore.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		twincore.Error(w, http.StatusBadRequest, "admin_bad_fault", "invalid fault config: "+err.Error())
		return
	}
	h.mw.Faults.Set(endpoint, fault)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":   "injected",
		"endpoint": endpoint,
		"fault":    fault,
	})
}

func (h *Handler) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultPath(r)
	if h.mw.Faults.Remove(endpoint) {
		twincore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": endpoint})
	} else {
		twincore.Error(w, http.StatusNotFound, "admin_no_fault", "no fault registered for "+endpoint)
	}
}

func (h *Handler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "admin_no_config", "runtime config not available")
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "admin_no_config", "runtime config not available")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, "admin_bad_config", "invalid config body: "+err.Error())
		return
	}
	if err := h.config.UpdateConfig(updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, "admin_bad_config", err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
