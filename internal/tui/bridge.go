package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmRequest is one pending Confirm call. The model answers on reply.
type confirmRequest struct {
	prompt string
	reply  chan bool
}

// confirmRequestMsg delivers a confirmRequest through the bubbletea loop.
type confirmRequestMsg struct {
	request confirmRequest
}

// noticeMsg delivers a failure notice for the status bar.
type noticeMsg struct {
	message string
}

// Bridge connects the workflow controller's synchronous Confirmer and
// Notifier to the bubbletea event loop. Confirm blocks the calling
// goroutine (a tea.Cmd) until the model answers.
type Bridge struct {
	prompts chan confirmRequest
	notices chan string
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		prompts: make(chan confirmRequest),
		notices: make(chan string, 8),
	}
}

// Confirm implements workflow.Confirmer. A cancelled context counts as a
// declined confirmation.
func (b *Bridge) Confirm(ctx context.Context, prompt string) bool {
	reply := make(chan bool, 1)
	select {
	case b.prompts <- confirmRequest{prompt: prompt, reply: reply}:
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Notify implements workflow.Notifier. Notices beyond the buffer are
// dropped rather than blocking the caller.
func (b *Bridge) Notify(message string) {
	select {
	case b.notices <- message:
	default:
	}
}

// listenForPrompt returns a tea.Cmd that blocks until a Confirm call
// arrives, then delivers it as a confirmRequestMsg.
func listenForPrompt(prompts <-chan confirmRequest) tea.Cmd {
	return func() tea.Msg {
		request, ok := <-prompts
		if !ok {
			return nil
		}
		return confirmRequestMsg{request: request}
	}
}

// listenForNotice returns a tea.Cmd that blocks until a notice arrives.
func listenForNotice(notices <-chan string) tea.Cmd {
	return func() tea.Msg {
		message, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg{message: message}
	}
}
