// Package tui is the interactive terminal front end of the reward catalog.
// It hosts a workflow.Controller and renders its mode as a list, a form or
// a preview.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wondertwin-ai/rewardcatalog/internal/catalog"
	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/internal/search"
	"github.com/wondertwin-ai/rewardcatalog/internal/workflow"
)

// noticeFadeDelay is how long a status bar notice stays visible.
const noticeFadeDelay = 5 * time.Second

// noticeLoadFailed is shown when the catalog cannot be fetched.
const noticeLoadFailed = "Could not load rewards. Press r to retry."

// catalogLoadedMsg is sent when a (re)load of rewards and stores finishes.
type catalogLoadedMsg struct {
	err error
}

// submitResultMsg is sent when an asynchronous Submit completes.
type submitResultMsg struct {
	saved reward.Reward
	err   error
}

// deleteResultMsg is sent when an asynchronous Delete completes.
type deleteResultMsg struct {
	id      int
	deleted bool
	err     error
}

// noticeFadeMsg clears the notice it was scheduled for.
type noticeFadeMsg struct {
	seq int
}

// Model is the top-level bubbletea model for the reward catalog TUI.
type Model struct {
	ctx    context.Context
	repo   *catalog.Repository
	ctrl   *workflow.Controller
	bridge *Bridge
	logger *slog.Logger
	theme  Theme
	keys   KeyMap
	help   help.Model

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int

	// Search & pagination. result is recomputed after every keystroke in
	// the search bar and after every successful mutation.
	search    textinput.Model
	searching bool
	page      int
	cursor    int
	result    search.Result

	form form

	// confirm is the pending delete confirmation, if any.
	confirm *confirmRequest

	notice    string
	noticeSeq int

	loading bool
	busy    bool // a submit or delete is running
}

// NewModel creates the model and the controller it drives.
func NewModel(ctx context.Context, repo *catalog.Repository, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	bridge := NewBridge()

	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "search rewards"
	in.CharLimit = 64

	return Model{
		ctx:     ctx,
		repo:    repo,
		ctrl:    workflow.New(repo, bridge, bridge, logger),
		bridge:  bridge,
		logger:  logger,
		theme:   DefaultTheme,
		keys:    DefaultKeyMap,
		help:    help.New(),
		search:  in,
		page:    1,
		loading: true,
	}
}

// Run starts the TUI on the terminal and blocks until the operator quits.
func Run(ctx context.Context, repo *catalog.Repository, logger *slog.Logger) error {
	program := tea.NewProgram(NewModel(ctx, repo, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// Init implements tea.Model. Starts the bridge listeners and the initial
// catalog load.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		listenForPrompt(model.bridge.prompts),
		listenForNotice(model.bridge.notices),
		model.loadCatalog(),
	)
}

func (model Model) loadCatalog() tea.Cmd {
	repo, ctx := model.repo, model.ctx
	return func() tea.Msg {
		if err := repo.List(ctx); err != nil {
			return catalogLoadedMsg{err: err}
		}
		return catalogLoadedMsg{err: repo.LoadStores(ctx)}
	}
}

func (model Model) submit() tea.Cmd {
	ctrl, ctx := model.ctrl, model.ctx
	return func() tea.Msg {
		saved, err := ctrl.Submit(ctx)
		return submitResultMsg{saved: saved, err: err}
	}
}

func (model Model) remove(id int) tea.Cmd {
	ctrl, ctx := model.ctrl, model.ctx
	return func() tea.Msg {
		deleted, err := ctrl.Delete(ctx, id)
		return deleteResultMsg{id: id, deleted: deleted, err: err}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.help.Width = message.Width
		return model, nil

	case catalogLoadedMsg:
		model.loading = false
		if message.err != nil {
			model.logger.Warn("catalog load failed", "err", message.err)
			cmd := model.setNotice(noticeLoadFailed)
			model.recompute()
			return model, cmd
		}
		model.recompute()
		return model, nil

	case submitResultMsg:
		model.busy = false
		var validation *workflow.ValidationError
		switch {
		case message.err == nil:
			model.recompute()
			model.selectReward(message.saved.ID)
		case errors.As(message.err, &validation):
			model.form.focusFirstError(validation.Fields, model.ctrl.State().Draft)
		}
		// Backend failures arrive separately through the notifier.
		return model, nil

	case deleteResultMsg:
		model.busy = false
		if message.deleted {
			model.recompute()
		}
		return model, nil

	case confirmRequestMsg:
		model.confirm = &message.request
		return model, nil

	case noticeMsg:
		cmd := model.setNotice(message.message)
		return model, tea.Batch(cmd, listenForNotice(model.bridge.notices))

	case noticeFadeMsg:
		if message.seq == model.noticeSeq {
			model.notice = ""
		}
		return model, nil

	case tea.KeyMsg:
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		if model.confirm != nil {
			return model.handleConfirmKeys(message)
		}
		switch model.ctrl.State().Mode {
		case workflow.FormOpen:
			return model.handleFormKeys(message)
		case workflow.PreviewOpen:
			return model.handlePreviewKeys(message)
		}
		if model.searching {
			return model.handleSearchKeys(message)
		}
		return model.handleListKeys(message)
	}
	return model, nil
}

// setNotice shows message in the status bar and schedules its removal.
func (model *Model) setNotice(message string) tea.Cmd {
	model.noticeSeq++
	model.notice = message
	seq := model.noticeSeq
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{seq: seq}
	})
}

// recompute reruns search and pagination over the repository and adopts
// the clamped page.
func (model *Model) recompute() {
	model.result = search.Run(model.repo.Rewards(), search.Query{
		Term: model.search.Value(),
		Page: model.page,
	})
	model.page = model.result.Page
	model.cursor = min(model.cursor, max(0, len(model.result.Items)-1))
}

// selectReward moves to the page and row showing id, if it is visible
// under the current search term.
func (model *Model) selectReward(id int) {
	matched := search.Filter(model.repo.Rewards(), model.search.Value())
	for i, r := range matched {
		if r.ID == id {
			model.page = i/search.PageSize + 1
			model.recompute()
			model.cursor = i % search.PageSize
			return
		}
	}
}

func (model Model) selected() (reward.Reward, bool) {
	if model.cursor < 0 || model.cursor >= len(model.result.Items) {
		return reward.Reward{}, false
	}
	return model.result.Items[model.cursor], true
}

func (model Model) handleConfirmKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer bool
	switch {
	case key.Matches(message, model.keys.Confirm):
		answer = true
	case key.Matches(message, model.keys.Decline):
		answer = false
	default:
		return model, nil
	}
	model.confirm.reply <- answer
	model.confirm = nil
	return model, listenForPrompt(model.bridge.prompts)
}

func (model Model) handlePreviewKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel),
		key.Matches(message, model.keys.Preview),
		key.Matches(message, model.keys.Quit):
		if err := model.ctrl.Close(); err != nil {
			model.logger.Debug("close preview", "err", err)
		}
	}
	return model, nil
}

// View implements tea.Model.
func (model Model) View() string {
	var body string
	switch state := model.ctrl.State(); state.Mode {
	case workflow.FormOpen:
		body = model.renderForm(state)
	case workflow.PreviewOpen:
		body = model.renderPreview(state.Preview)
	default:
		body = model.renderList()
	}

	if model.confirm != nil {
		modal := model.renderConfirm(model.confirm.prompt)
		if model.width > 0 && model.height > 0 {
			return lipgloss.Place(model.width, model.height, lipgloss.Center, lipgloss.Center, modal)
		}
		return body + "\n\n" + modal
	}

	sections := []string{body}
	if model.notice != "" {
		sections = append(sections, model.theme.errorText().Render(model.notice))
	}
	return strings.Join(sections, "\n")
}

func (model Model) renderConfirm(prompt string) string {
	content := prompt + "\n\n" + model.help.ShortHelpView([]key.Binding{model.keys.Confirm, model.keys.Decline})
	return model.theme.box().Render(content)
}
