package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/rewardcatalog/internal/backend"
	"github.com/wondertwin-ai/rewardcatalog/internal/catalog"
	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// stubBackend satisfies catalog.Backend. When gate is set, CreateReward
// waits on it so tests can observe an in-flight submit.
type stubBackend struct {
	mu      sync.Mutex
	rewards []reward.Reward
	stores  []reward.Store
	nextID  int
	err     error
	gate    chan struct{}
	creates int
	deletes int
	keys    []string
}

func (s *stubBackend) ListRewards(context.Context) ([]reward.Reward, error) {
	return s.rewards, nil
}

func (s *stubBackend) CreateReward(ctx context.Context, d reward.Reward) (reward.Reward, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.keys = append(s.keys, backend.IdempotencyKeyFrom(ctx))
	if s.err != nil {
		return reward.Reward{}, s.err
	}
	d.ID = s.nextID
	return d, nil
}

func (s *stubBackend) UpdateReward(_ context.Context, r reward.Reward) (reward.Reward, error) {
	if s.err != nil {
		return reward.Reward{}, s.err
	}
	return r, nil
}

func (s *stubBackend) DeleteReward(context.Context, int) error {
	s.deletes++
	return s.err
}

func (s *stubBackend) ListStores(context.Context) ([]reward.Store, error) {
	return s.stores, nil
}

type harness struct {
	backend *stubBackend
	repo    *catalog.Repository
	ctrl    *Controller
	notices []string
	answer  bool
	asked   int
}

func newHarness(t *testing.T, rewards ...reward.Reward) *harness {
	t.Helper()
	h := &harness{
		backend: &stubBackend{
			rewards: rewards,
			stores:  []reward.Store{{ID: 1, Name: "Downtown"}, {ID: 2, Name: "Uptown"}},
			nextID:  42,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.repo = catalog.New(h.backend, logger)
	require.NoError(t, h.repo.List(context.Background()))
	require.NoError(t, h.repo.LoadStores(context.Background()))

	var mu sync.Mutex
	notifier := NotifierFunc(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		h.notices = append(h.notices, msg)
	})
	confirmer := ConfirmerFunc(func(context.Context, string) bool {
		h.asked++
		return h.answer
	})
	h.ctrl = New(h.repo, notifier, confirmer, logger)
	return h
}

func fillValid(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Change(
		reward.SetName("Free Pizza"),
		reward.SetDescription("Any large pizza"),
		reward.SetPoints(100),
		reward.SetQuota(5),
		reward.SetStore(1),
	))
}

func existing(id int, name string) reward.Reward {
	return reward.Reward{
		ID: id, Name: name, Description: "desc", Points: 50,
		Validity: reward.ValidityInstant, NeverExpire: true, StoreID: 2,
	}
}

func TestInitialStateIsIdle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Idle, h.ctrl.State().Mode)
}

func TestSubmitNewDraftCreatesAndReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.AddNew())

	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode)
	assert.False(t, st.Editing)
	assert.Equal(t, reward.Blank(), st.Draft)

	fillValid(t, h.ctrl)
	saved, err := h.ctrl.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, saved.ID)
	got, ok := h.repo.Get(42)
	require.True(t, ok)
	assert.Equal(t, "Free Pizza", got.Name)
	assert.Equal(t, 100, got.Points)
	assert.Equal(t, Idle, h.ctrl.State().Mode)
	assert.Empty(t, h.notices)
}

func TestSubmitInvalidKeepsFormOpen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.AddNew())
	require.NoError(t, h.ctrl.Change(
		reward.SetDescription("Free slice"),
		reward.SetPoints(100),
		reward.SetQuota(5),
		reward.SetStore(1),
	))

	_, err := h.ctrl.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, reward.FieldErrors{reward.FieldName: reward.MsgNameRequired}, verr.Fields)

	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode)
	assert.Equal(t, reward.MsgNameRequired, st.Errors[reward.FieldName])
	assert.Equal(t, 0, h.backend.creates, "validation failures never reach the backend")
	assert.Empty(t, h.notices)
}

func TestChangeClearsFieldError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.AddNew())
	_, err := h.ctrl.Submit(context.Background())
	require.Error(t, err)
	require.Contains(t, h.ctrl.State().Errors, reward.FieldName)

	require.NoError(t, h.ctrl.Change(reward.SetName("x")))
	st := h.ctrl.State()
	assert.NotContains(t, st.Errors, reward.FieldName)
	assert.Contains(t, st.Errors, reward.FieldPoints)
}

func TestSubmitRejectsUnknownStore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)
	require.NoError(t, h.ctrl.Change(reward.SetStore(9)))

	_, err := h.ctrl.Submit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, reward.MsgStoreUnavailable, verr.Fields[reward.FieldStoreID])
}

func TestDuplicateSubmitsAsNewReward(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	src, _ := h.repo.Get(7)

	require.NoError(t, h.ctrl.Duplicate(src))
	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode)
	assert.False(t, st.Editing)
	assert.Equal(t, 0, st.Draft.ID)
	assert.Equal(t, "Copy of Free Soda", st.Draft.Name)
	assert.Equal(t, 50, st.Draft.Points)

	saved, err := h.ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, saved.ID)
	assert.Equal(t, 2, h.repo.Len())
	orig, _ := h.repo.Get(7)
	assert.Equal(t, "Free Soda", orig.Name)
}

func TestEditUpdatesInPlace(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	src, _ := h.repo.Get(7)

	require.NoError(t, h.ctrl.Edit(src))
	assert.True(t, h.ctrl.State().Editing)
	require.NoError(t, h.ctrl.Change(reward.SetPoints(75)))

	saved, err := h.ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, saved.ID)

	got, _ := h.repo.Get(7)
	assert.Equal(t, 75, got.Points)
	assert.Equal(t, 1, h.repo.Len())
	assert.Equal(t, 0, h.backend.creates)
}

func TestEditRequiresPersistedReward(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.ctrl.Edit(reward.Blank()))
	assert.Equal(t, Idle, h.ctrl.State().Mode)
}

func TestSubmitBackendFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.backend.err = errors.New("502 bad gateway")
	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)
	before := h.ctrl.State().Draft

	_, err := h.ctrl.Submit(context.Background())

	var be *catalog.BackendError
	require.ErrorAs(t, err, &be)
	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode)
	assert.Equal(t, before, st.Draft)
	assert.Empty(t, st.Errors, "backend failures are not field errors")
	assert.False(t, st.Submitting)
	assert.Equal(t, []string{NoticeSaveFailed}, h.notices)
	assert.Equal(t, 0, h.repo.Len())

	// The operator resubmits once the backend recovers.
	h.backend.err = nil
	_, err = h.ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, h.ctrl.State().Mode)
}

func TestSubmitNormalizesExpiration(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)
	require.NoError(t, h.ctrl.Change(
		reward.SetNeverExpire(false),
		reward.SetExpirationDate("2026-01-31"),
		reward.SetNeverExpire(true),
	))

	saved, err := h.ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, saved.NeverExpire)
	assert.Empty(t, saved.ExpirationDate)
}

func TestDoubleSubmitIsRefused(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.ctrl.State().Submitting }, time.Second, time.Millisecond)
	_, err := h.ctrl.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(h.backend.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.backend.creates)
	assert.Equal(t, 1, h.repo.Len())
}

func TestLateSuccessAfterCancelStillApplies(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.State().Submitting }, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.Cancel())
	require.NoError(t, h.ctrl.AddNew())

	close(h.backend.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, h.repo.Len(), "the pending create still lands")
	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode, "the newer form is left open")
	assert.Equal(t, reward.Blank(), st.Draft)
}

func TestCancelAndClose(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	src, _ := h.repo.Get(7)

	require.NoError(t, h.ctrl.AddNew())
	require.NoError(t, h.ctrl.Cancel())
	assert.Equal(t, Idle, h.ctrl.State().Mode)

	require.NoError(t, h.ctrl.Preview(src))
	st := h.ctrl.State()
	assert.Equal(t, PreviewOpen, st.Mode)
	assert.Equal(t, src, st.Preview)

	require.NoError(t, h.ctrl.Close())
	assert.Equal(t, Idle, h.ctrl.State().Mode)
}

func TestIllegalTransitions(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	src, _ := h.repo.Get(7)

	var terr *TransitionError
	assert.ErrorAs(t, h.ctrl.Cancel(), &terr)
	assert.ErrorAs(t, h.ctrl.Close(), &terr)
	assert.ErrorAs(t, h.ctrl.Change(reward.SetName("x")), &terr)
	_, err := h.ctrl.Submit(context.Background())
	assert.ErrorAs(t, err, &terr)

	require.NoError(t, h.ctrl.Preview(src))
	assert.ErrorAs(t, h.ctrl.AddNew(), &terr)
	assert.ErrorAs(t, h.ctrl.Edit(src), &terr)
	assert.Equal(t, PreviewOpen, terr.From)
}

func TestDeleteConfirmed(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"), existing(8, "Breadsticks"))
	h.answer = true

	deleted, err := h.ctrl.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, h.asked)
	_, ok := h.repo.Get(7)
	assert.False(t, ok)
	assert.Equal(t, Idle, h.ctrl.State().Mode)
}

func TestDeleteDeclined(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	h.answer = false

	deleted, err := h.ctrl.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, h.repo.Len())
	assert.Equal(t, 0, h.backend.deletes)
}

func TestDeleteDoesNotChangeMode(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"), existing(8, "Breadsticks"))
	h.answer = true
	src, _ := h.repo.Get(8)
	require.NoError(t, h.ctrl.Edit(src))
	require.NoError(t, h.ctrl.Change(reward.SetName("Garlic Bread")))

	_, err := h.ctrl.Delete(context.Background(), 7)
	require.NoError(t, err)

	st := h.ctrl.State()
	assert.Equal(t, FormOpen, st.Mode)
	assert.Equal(t, "Garlic Bread", st.Draft.Name)
}

func TestDeleteFailureNotifies(t *testing.T) {
	h := newHarness(t, existing(7, "Free Soda"))
	h.answer = true
	h.backend.err = errors.New("forbidden")

	deleted, err := h.ctrl.Delete(context.Background(), 7)
	require.Error(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []string{NoticeDeleteFailed}, h.notices)
	assert.Equal(t, 1, h.repo.Len())
}

func TestIdempotencyKeyPerForm(t *testing.T) {
	h := newHarness(t)
	keys := 0
	h.ctrl.newKey = func() string { keys++; return "k" }

	require.NoError(t, h.ctrl.AddNew())
	require.NoError(t, h.ctrl.Cancel())
	require.NoError(t, h.ctrl.AddNew())
	assert.Equal(t, 2, keys)
}

func TestIdempotencyKeyFollowsDraftContent(t *testing.T) {
	h := newHarness(t)
	n := 0
	h.ctrl.newKey = func() string { n++; return fmt.Sprintf("key-%d", n) }
	h.backend.err = errors.New("timeout")

	require.NoError(t, h.ctrl.AddNew())
	fillValid(t, h.ctrl)
	_, err := h.ctrl.Submit(context.Background())
	require.Error(t, err)
	_, err = h.ctrl.Submit(context.Background())
	require.Error(t, err)

	// Hidden while never-expire is set, so the payload is unchanged.
	require.NoError(t, h.ctrl.Change(reward.SetExpirationDate("2027-01-01")))
	_, err = h.ctrl.Submit(context.Background())
	require.Error(t, err)

	require.NoError(t, h.ctrl.Change(reward.SetName("Breadsticks"), reward.SetPoints(150)))
	h.backend.err = nil
	saved, err := h.ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Breadsticks", saved.Name)

	keys := h.backend.keys
	require.Len(t, keys, 4)
	assert.Equal(t, keys[0], keys[1], "a plain retry reuses the key")
	assert.Equal(t, keys[1], keys[2], "an edit that does not change the payload keeps the key")
	assert.NotEqual(t, keys[2], keys[3], "an edited draft gets a new key")
}
