package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

// ListRewards handles GET /rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.store.Rewards.Values())
}

// CreateReward handles POST /rewards. The twin stores the body as given,
// ignoring any client-supplied id.
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var body reward.Reward
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "rest_invalid_json", "Invalid JSON body passed.")
		return
	}

	created := h.store.CreateReward(body)
	h.recordMutation("create")
	h.logger.Debug("reward created", "id", created.ID, "name", created.Name)
	twincore.JSON(w, http.StatusCreated, created)
}

// UpdateReward handles PUT /rewards/{id}: a full-record replace.
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id, ok := rewardID(w, r)
	if !ok {
		return
	}

	var body reward.Reward
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "rest_invalid_json", "Invalid JSON body passed.")
		return
	}

	updated, ok := h.store.ReplaceReward(id, body)
	if !ok {
		notFound(w)
		return
	}
	h.recordMutation("update")
	h.logger.Debug("reward updated", "id", id)
	twincore.JSON(w, http.StatusOK, updated)
}

// DeleteReward handles DELETE /rewards/{id}.
func (h *Handler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	id, ok := rewardID(w, r)
	if !ok {
		return
	}
	if !h.store.DeleteReward(id) {
		notFound(w)
		return
	}
	h.recordMutation("delete")
	h.logger.Debug("reward deleted", "id", id)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"deleted": true,
		"id":      id,
	})
}

// ListStores handles GET /stores.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.store.Stores.Values())
}

func rewardID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		notFound(w)
		return 0, false
	}
	return id, true
}

func notFound(w http.ResponseWriter) {
	twincore.Error(w, http.StatusNotFound, "rest_reward_invalid_id", "Invalid reward ID.")
}

func (h *Handler) recordMutation(op string) {
	if h.metrics != nil {
		h.metrics.RecordMutation(op)
	}
}
