// Package catalog holds the operator's canonical copy of the reward
// collection and keeps it in sync with the Store Backend. The local
// collection changes only after the backend confirms a write.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/pkg/ordered"
)

// Backend is the remote store that is authoritative for reward ids.
type Backend interface {
	ListRewards(ctx context.Context) ([]reward.Reward, error)
	CreateReward(ctx context.Context, draft reward.Reward) (reward.Reward, error)
	UpdateReward(ctx context.Context, r reward.Reward) (reward.Reward, error)
	DeleteReward(ctx context.Context, id int) error
	ListStores(ctx context.Context) ([]reward.Store, error)
}

var (
	// ErrNotDraft is returned by Create for a reward that already has an id.
	ErrNotDraft = errors.New("catalog: create requires a draft with id 0")
	// ErrUnknownReward is returned by Update and Delete for an id that is
	// not in the local collection.
	ErrUnknownReward = errors.New("catalog: unknown reward")
	// ErrMissingID is returned when the backend answers a create without
	// assigning an id.
	ErrMissingID = errors.New("catalog: backend returned a reward without an id")
)

// BackendError is a failed backend call. Err carries the cause for callers
// that need to tell auth, network and conflict failures apart.
type BackendError struct {
	Op  string
	ID  int
	Err error
}

func (e *BackendError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s reward %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Repository owns the reward collection, keyed by id in insertion order,
// and the loaded store reference data.
type Repository struct {
	backend Backend
	logger  *slog.Logger
	rewards *ordered.Map[int, reward.Reward]

	mu     sync.RWMutex
	stores []reward.Store
}

// New creates an empty Repository backed by b.
func New(b Backend, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		backend: b,
		logger:  logger,
		rewards: ordered.New[int, reward.Reward](),
	}
}

// List replaces the local collection with the backend's current set. On
// failure the collection is left as it was.
func (r *Repository) List(ctx context.Context) error {
	fetched, err := r.backend.ListRewards(ctx)
	if err != nil {
		r.logger.Warn("list rewards failed", "err", err)
		return &BackendError{Op: "list", Err: err}
	}

	kept := make([]reward.Reward, 0, len(fetched))
	for _, rw := range fetched {
		if rw.ID == 0 {
			r.logger.Warn("dropping reward without id from backend listing", "name", rw.Name)
			continue
		}
		kept = append(kept, rw)
	}
	r.rewards.Replace(kept, rewardID)
	r.logger.Debug("rewards listed", "count", r.rewards.Len())
	return nil
}

// LoadStores replaces the store reference data.
func (r *Repository) LoadStores(ctx context.Context) error {
	stores, err := r.backend.ListStores(ctx)
	if err != nil {
		r.logger.Warn("list stores failed", "err", err)
		return &BackendError{Op: "list stores", Err: err}
	}
	r.mu.Lock()
	r.stores = stores
	r.mu.Unlock()
	r.logger.Debug("stores loaded", "count", len(stores))
	return nil
}

// Create persists draft and appends the stored entity. The id always comes
// from the backend. If the backend answers with an id already present (a
// replayed create), that entry is replaced rather than duplicated.
func (r *Repository) Create(ctx context.Context, draft reward.Reward) (reward.Reward, error) {
	if !draft.IsDraft() {
		return reward.Reward{}, ErrNotDraft
	}
	created, err := r.backend.CreateReward(ctx, draft)
	if err != nil {
		r.logger.Warn("create reward failed", "name", draft.Name, "err", err)
		return reward.Reward{}, &BackendError{Op: "create", Err: err}
	}
	if created.ID == 0 {
		r.logger.Warn("create reward returned no id", "name", draft.Name)
		return reward.Reward{}, &BackendError{Op: "create", Err: ErrMissingID}
	}
	r.rewards.Set(created.ID, created)
	r.logger.Info("reward created", "id", created.ID, "name", created.Name)
	return created, nil
}

// Update replaces the whole record stored under rw.ID with what the backend
// returns. The entry keeps its position in the listing. If rw.ID was
// deleted while the call ran, the collection is left without it.
func (r *Repository) Update(ctx context.Context, rw reward.Reward) (reward.Reward, error) {
	if rw.ID == 0 || !r.rewards.Has(rw.ID) {
		return reward.Reward{}, fmt.Errorf("update reward %d: %w", rw.ID, ErrUnknownReward)
	}
	updated, err := r.backend.UpdateReward(ctx, rw)
	if err != nil {
		r.logger.Warn("update reward failed", "id", rw.ID, "err", err)
		return reward.Reward{}, &BackendError{Op: "update", ID: rw.ID, Err: err}
	}
	// Some backends echo a body without the id; the path is authoritative.
	updated.ID = rw.ID
	if !r.rewards.Update(updated.ID, updated) {
		// Deleted while the update was in flight; the delete stands.
		r.logger.Warn("updated reward no longer in collection", "id", updated.ID)
		return updated, nil
	}
	r.logger.Info("reward updated", "id", updated.ID)
	return updated, nil
}

// Delete removes id from the backend and then from the collection. An id
// that is not in the collection fails without calling the backend.
func (r *Repository) Delete(ctx context.Context, id int) error {
	if !r.rewards.Has(id) {
		return fmt.Errorf("delete reward %d: %w", id, ErrUnknownReward)
	}
	if err := r.backend.DeleteReward(ctx, id); err != nil {
		r.logger.Warn("delete reward failed", "id", id, "err", err)
		return &BackendError{Op: "delete", ID: id, Err: err}
	}
	r.rewards.Delete(id)
	r.logger.Info("reward deleted", "id", id)
	return nil
}

// Rewards returns a copy of the collection in display order.
func (r *Repository) Rewards() []reward.Reward {
	return r.rewards.Values()
}

// Get returns the reward with the given id.
func (r *Repository) Get(id int) (reward.Reward, bool) {
	return r.rewards.Get(id)
}

// Len returns the collection size.
func (r *Repository) Len() int {
	return r.rewards.Len()
}

// Stores returns a copy of the loaded store reference data.
func (r *Repository) Stores() []reward.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reward.Store, len(r.stores))
	copy(out, r.stores)
	return out
}

// StoreName resolves a store id for display, falling back to the raw id.
func (r *Repository) StoreName(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := reward.FindStore(r.stores, id); ok {
		return s.Name
	}
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("store #%d", id)
}

func rewardID(rw reward.Reward) int { return rw.ID }
