package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// LibraryChooser lets a blocking avatar.Chooser use the profile screen's file
// picker. Pass Choose to the avatar picker and the same value in Deps.
type LibraryChooser struct {
	requests chan chooseRequest
}

type chooseRequest struct {
	dir   string
	reply chan string
}

// chooseMsg asks the profile screen to open its file picker at dir.
type chooseMsg struct {
	req chooseRequest
}

// NewLibraryChooser creates a chooser with no pending request.
func NewLibraryChooser() *LibraryChooser {
	return &LibraryChooser{requests: make(chan chooseRequest)}
}

// Choose blocks until the screen reports a file under dir. An empty path
// means the user backed out.
func (c *LibraryChooser) Choose(ctx context.Context, dir string) (string, error) {
	req := chooseRequest{dir: dir, reply: make(chan string, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case path := <-req.reply:
		return path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// wait delivers the next request as a chooseMsg. It gives up when done is
// closed, which happens once the pick it serves has returned.
func (c *LibraryChooser) wait(ctx context.Context, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-c.requests:
			return chooseMsg{req: req}
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
