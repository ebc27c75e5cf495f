// Package workflow implements the state machine behind the reward screen:
// which of the list, the form or the preview is open, and what happens on
// add, edit, duplicate, preview, cancel, submit and delete.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/rewardcatalog/internal/backend"
	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// Mode is the screen the controller is in.
type Mode int

const (
	Idle Mode = iota
	FormOpen
	PreviewOpen
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case FormOpen:
		return "form"
	case PreviewOpen:
		return "preview"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Notices handed to the Notifier when a backend call fails.
const (
	NoticeSaveFailed   = "An error occurred while saving the reward. Please try again."
	NoticeDeleteFailed = "An error occurred while deleting the reward. Please try again."
	DeletePrompt       = "Are you sure you want to delete this reward?"
)

// State is a snapshot of the controller.
type State struct {
	Mode Mode

	// Form fields, meaningful in FormOpen.
	Editing    bool
	Draft      reward.Reward
	Errors     reward.FieldErrors
	Submitting bool

	// Preview is the reward shown in PreviewOpen.
	Preview reward.Reward
}

// Catalog is the slice of the reward repository the controller drives.
type Catalog interface {
	Create(ctx context.Context, draft reward.Reward) (reward.Reward, error)
	Update(ctx context.Context, r reward.Reward) (reward.Reward, error)
	Delete(ctx context.Context, id int) error
	Stores() []reward.Store
}

// Notifier surfaces backend failures. It is fire-and-forget.
type Notifier interface {
	Notify(message string)
}

// Confirmer is the yes/no gate in front of delete. Confirm blocks until the
// operator answers.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// ErrSubmitInFlight is returned by Submit while the same form is already
// waiting on the backend.
var ErrSubmitInFlight = errors.New("workflow: submit already in progress")

// TransitionError is returned when an intent is not legal in the current mode.
type TransitionError struct {
	Intent string
	From   Mode
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: cannot %s while %s", e.Intent, e.From)
}

// ValidationError carries the per-field messages of a rejected submit.
type ValidationError struct {
	Fields reward.FieldErrors
}

func (e *ValidationError) Error() string {
	return "workflow: invalid reward: " + e.Fields.Error()
}

// Controller is safe for concurrent use. Submit and Delete block on the
// backend without holding the controller's lock, so a UI can keep reading
// State while they run.
type Controller struct {
	catalog   Catalog
	notifier  Notifier
	confirmer Confirmer
	logger    *slog.Logger
	newKey    func() string

	mu    sync.Mutex
	state State
	// form counts opened forms so a late result only affects its own form.
	form    uint64
	pending uint64
	key     string
}

// New creates a Controller in Idle.
func New(c Catalog, n Notifier, cf Confirmer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		catalog:   c,
		notifier:  n,
		confirmer: cf,
		logger:    logger,
		newKey:    uuid.NewString,
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Errors != nil {
		errs := make(reward.FieldErrors, len(s.Errors))
		for f, m := range s.Errors {
			errs[f] = m
		}
		s.Errors = errs
	}
	return s
}

// AddNew opens the form on a blank draft.
func (c *Controller) AddNew() error {
	return c.openForm("add", false, reward.Blank())
}

// Edit opens the form on a copy of selected.
func (c *Controller) Edit(selected reward.Reward) error {
	if selected.IsDraft() {
		return fmt.Errorf("workflow: edit requires a persisted reward")
	}
	return c.openForm("edit", true, selected)
}

// Duplicate opens the form on a new draft templated from selected.
func (c *Controller) Duplicate(selected reward.Reward) error {
	return c.openForm("duplicate", false, reward.Duplicate(selected))
}

func (c *Controller) openForm(intent string, editing bool, draft reward.Reward) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != Idle {
		return &TransitionError{Intent: intent, From: c.state.Mode}
	}
	c.form++
	c.key = c.newKey()
	c.state = State{Mode: FormOpen, Editing: editing, Draft: draft}
	c.logger.Debug("form opened", "intent", intent, "id", draft.ID)
	return nil
}

// Preview shows selected read-only.
func (c *Controller) Preview(selected reward.Reward) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != Idle {
		return &TransitionError{Intent: "preview", From: c.state.Mode}
	}
	c.state = State{Mode: PreviewOpen, Preview: selected}
	return nil
}

// Cancel closes the form without saving. A submit already sent to the
// backend is not aborted; if it succeeds later the collection still
// changes.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != FormOpen {
		return &TransitionError{Intent: "cancel", From: c.state.Mode}
	}
	c.state = State{Mode: Idle}
	return nil
}

// Close leaves the preview.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != PreviewOpen {
		return &TransitionError{Intent: "close", From: c.state.Mode}
	}
	c.state = State{Mode: Idle}
	return nil
}

// Change applies field patches to the open draft. Messages for the changed
// fields are cleared so stale errors do not linger next to edited inputs.
// An edit that changes what Submit would send starts a new idempotency key.
func (c *Controller) Change(patches ...reward.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != FormOpen {
		return &TransitionError{Intent: "change", From: c.state.Mode}
	}
	next := reward.Apply(c.state.Draft, patches...)
	if reward.Normalize(next) != reward.Normalize(c.state.Draft) {
		c.key = c.newKey()
	}
	c.state.Draft = next
	for _, p := range patches {
		delete(c.state.Errors, p.Field())
	}
	return nil
}

// Submit validates the draft and, if it passes, creates it (id 0) or
// updates it. Validation failures keep the form open with Errors set and
// return a *ValidationError. Backend failures keep the form open with the
// draft intact, notify the operator and return the error. Success returns
// to Idle.
func (c *Controller) Submit(ctx context.Context) (reward.Reward, error) {
	c.mu.Lock()
	if mode := c.state.Mode; mode != FormOpen {
		c.mu.Unlock()
		return reward.Reward{}, &TransitionError{Intent: "submit", From: mode}
	}
	if c.pending == c.form {
		c.mu.Unlock()
		return reward.Reward{}, ErrSubmitInFlight
	}
	if errs := reward.ValidateStores(c.state.Draft, c.catalog.Stores()); !errs.OK() {
		c.state.Errors = errs
		c.mu.Unlock()
		return reward.Reward{}, &ValidationError{Fields: errs}
	}
	form, key := c.form, c.key
	draft := reward.Normalize(c.state.Draft)
	c.state.Errors = nil
	c.state.Submitting = true
	c.pending = form
	c.mu.Unlock()

	var (
		saved reward.Reward
		err   error
	)
	if draft.IsDraft() {
		saved, err = c.catalog.Create(backend.WithIdempotencyKey(ctx, key), draft)
	} else {
		saved, err = c.catalog.Update(ctx, draft)
	}

	c.mu.Lock()
	if c.pending == form {
		c.pending = 0
	}
	current := c.form == form && c.state.Mode == FormOpen
	if current {
		c.state.Submitting = false
	}
	if err == nil && current {
		c.state = State{Mode: Idle}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("submit failed", "id", draft.ID, "err", err)
		c.notify(NoticeSaveFailed)
		return reward.Reward{}, err
	}
	return saved, nil
}

// Delete asks the Confirmer and, on approval, deletes id. It never changes
// the controller's mode. It reports whether the reward was deleted; a
// declined confirmation is (false, nil).
func (c *Controller) Delete(ctx context.Context, id int) (bool, error) {
	if c.confirmer == nil || !c.confirmer.Confirm(ctx, DeletePrompt) {
		c.logger.Debug("delete declined", "id", id)
		return false, nil
	}
	if err := c.catalog.Delete(ctx, id); err != nil {
		c.logger.Warn("delete failed", "id", id, "err", err)
		c.notify(NoticeDeleteFailed)
		return false, err
	}
	return true, nil
}

func (c *Controller) notify(message string) {
	if c.notifier != nil {
		c.notifier.Notify(message)
	}
}
