package actions

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/app"
	"github.com/glabrego/mug-cli/internal/mug"
)

// Persister is the local cache the TUI writes to outside the engine.
type Persister interface {
	SaveSnapshot(ctx context.Context, urls []mug.MonitoredURL) error
	SaveUIPreferences(ctx context.Context, prefs app.UIPreferences) error
}

type OpenURLSuccessMsg struct {
	Status string
	Opened bool
}

type OpenURLErrorMsg struct {
	Err error
}

type PreferenceSaveErrorMsg struct {
	Err error
}

type SnapshotSavedMsg struct {
	Count int
}

type SnapshotErrorMsg struct {
	Err error
}

type PreviewSuccessMsg struct {
	ID      int64
	Label   string
	Preview string
}

type PreviewErrorMsg struct {
	ID    int64
	Label string
	Err   error
}

func OpenURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened URL in browser", Opened: true}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}

func PersistPreferencesCmd(p Persister, prefs app.UIPreferences) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.SaveUIPreferences(ctx, prefs); err != nil {
			return PreferenceSaveErrorMsg{Err: err}
		}
		return nil
	}
}

func SaveSnapshotCmd(p Persister, urls []mug.MonitoredURL) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.SaveSnapshot(ctx, urls); err != nil {
			return SnapshotErrorMsg{Err: err}
		}
		return SnapshotSavedMsg{Count: len(urls)}
	}
}

// PreviewCmd renders payload off the event loop; label names the image
// ("reference" or "current") so a late result lands on the right slot.
func PreviewCmd(id int64, label, payload string, width int, renderFn func(string, int) (string, error)) tea.Cmd {
	if renderFn == nil {
		return nil
	}
	return func() tea.Msg {
		preview, err := renderFn(payload, width)
		if err != nil {
			return PreviewErrorMsg{ID: id, Label: label, Err: err}
		}
		return PreviewSuccessMsg{ID: id, Label: label, Preview: preview}
	}
}
