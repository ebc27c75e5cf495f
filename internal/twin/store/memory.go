// Package store holds the Store Backend twin's state in memory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/pkg/ordered"
)

// MemoryStore holds all twin state in memory. Rewards and stores are listed
// in insertion order.
type MemoryStore struct {
	Rewards *ordered.Map[int, reward.Reward]
	Stores  *ordered.Map[int, reward.Store]

	mu           sync.Mutex // serializes id assignment with inserts
	rewardSerial int
	seed         []byte // fixture reloaded by Reset; nil means SeedDefaults
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		Rewards: ordered.New[int, reward.Reward](),
		Stores:  ordered.New[int, reward.Store](),
	}
}

// CreateReward stores r under a fresh id and returns the stored value.
// Whatever else r carries is kept as given; the twin does not validate.
func (s *MemoryStore) CreateReward(r reward.Reward) reward.Reward {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewardSerial++
	r.ID = s.rewardSerial
	s.Rewards.Set(r.ID, r)
	return r
}

// ReplaceReward overwrites the reward stored under id with r. It reports
// false when id is unknown.
func (s *MemoryStore) ReplaceReward(id int, r reward.Reward) (reward.Reward, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Rewards.Has(id) {
		return reward.Reward{}, false
	}
	r.ID = id
	s.Rewards.Set(id, r)
	return r, true
}

// DeleteReward removes the reward stored under id.
func (s *MemoryStore) DeleteReward(id int) bool {
	return s.Rewards.Delete(id)
}

// State is the JSON form used by /admin/state and seed files.
type State struct {
	Rewards []reward.Reward `json:"rewards"`
	Stores  []reward.Store  `json:"stores"`
}

// Snapshot returns full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return State{
		Rewards: s.Rewards.Values(),
		Stores:  s.Stores.Values(),
	}
}

// LoadState replaces state from JSON. Comments and trailing commas are
// accepted. A section left out of the document is kept as it was.
func (s *MemoryStore) LoadState(data []byte) error {
	var st struct {
		Rewards *[]reward.Reward `json:"rewards"`
		Stores  *[]reward.Store  `json:"stores"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &st); err != nil {
		return fmt.Errorf("parsing state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Rewards != nil {
		for _, r := range *st.Rewards {
			if r.ID <= 0 {
				return fmt.Errorf("reward %q has no id", r.Name)
			}
		}
		s.Rewards.Replace(*st.Rewards, func(r reward.Reward) int { return r.ID })
		s.rewardSerial = 0
		for _, id := range s.Rewards.Keys() {
			s.rewardSerial = max(s.rewardSerial, id)
		}
	}
	if st.Stores != nil {
		s.Stores.Replace(*st.Stores, func(st reward.Store) int { return st.ID })
	}
	return nil
}

// LoadSeedFile loads a fixture from path and remembers it, so Reset
// restores the fixture instead of the built-in defaults.
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	if err := s.LoadState(data); err != nil {
		return fmt.Errorf("seed file %s: %w", path, err)
	}
	s.mu.Lock()
	s.seed = data
	s.mu.Unlock()
	return nil
}

// Reset clears all state and reloads the seed fixture, or the defaults when
// no fixture was loaded.
func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	s.Rewards.Reset()
	s.Stores.Reset()
	s.rewardSerial = 0
	seed := s.seed
	s.mu.Unlock()

	if seed != nil {
		if err := s.LoadState(seed); err != nil {
			return fmt.Errorf("reloading seed fixture: %w", err)
		}
		return nil
	}
	s.SeedDefaults()
	return nil
}

// SeedDefaults populates the store with the sample pizzeria data.
func (s *MemoryStore) SeedDefaults() {
	for _, st := range []reward.Store{
		{ID: 1, Name: "Downtown Pizzeria"},
		{ID: 2, Name: "Uptown Pizza Palace"},
		{ID: 3, Name: "Suburban Slice Haven"},
	} {
		s.Stores.Set(st.ID, st)
	}

	for _, r := range []reward.Reward{
		{Name: "Free Slice", Description: "One slice of any pizza", Points: 100, Quota: 0,
			Validity: reward.ValidityInstant, NeverExpire: true, StoreID: 1},
		{Name: "Free Large Pizza", Description: "Any large pizza with up to three toppings", Points: 800, Quota: 50,
			Validity: reward.ValidityLimited, ExpirationDate: "2026-12-31", StoreID: 2},
		{Name: "Garlic Knots", Description: "Six garlic knots with marinara", Points: 250, Quota: 0,
			Validity: reward.ValidityInstant, NeverExpire: true, StoreID: 3},
	} {
		s.CreateReward(r)
	}
}
