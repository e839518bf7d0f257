package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/engine"
	tuiactions "github.com/glabrego/mug-cli/internal/tui/actions"
	tuistate "github.com/glabrego/mug-cli/internal/tui/state"
	tuitree "github.com/glabrego/mug-cli/internal/tui/tree"
	tuiview "github.com/glabrego/mug-cli/internal/tui/view"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.adding {
		return m.handleInputKey(msg)
	}

	key := msg.String()
	if key != "x" {
		m.pendingDeleteID = 0
	}

	switch key {
	case "ctrl+c", "q":
		return m.quit()
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.showHelp {
		if key == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.inDetail {
		return m.handleDetailKey(key)
	}
	return m.handleListKey(key)
}

func (m Model) handleListKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		m.moveCursorBy(-1)
		return m, nil
	case "down", "j":
		m.moveCursorBy(1)
		return m, nil
	case "g":
		m.moveCursorTo(0)
		return m, nil
	case "G":
		m.moveCursorTo(len(m.treeRows()) - 1)
		return m, nil
	case "pgup", "ctrl+b":
		m.moveCursorBy(-tuistate.PageStep(m.height, m.status != ""))
		return m, nil
	case "pgdown", "ctrl+f":
		m.moveCursorBy(tuistate.PageStep(m.height, m.status != ""))
		return m, nil
	case "left", "h":
		m.collapseCurrentHost()
		return m, nil
	case "right", "l":
		m.expandCurrentHost()
		return m, nil
	case "enter":
		rows := m.treeRows()
		if len(rows) == 0 {
			return m, nil
		}
		row := rows[tuistate.ClampCursor(m.treeCursor, len(rows))]
		if row.Kind == tuitree.RowHost {
			if m.collapsedHosts[row.Host] {
				delete(m.collapsedHosts, row.Host)
			} else {
				m.collapsedHosts[row.Host] = true
			}
			return m, nil
		}
		if _, ok := m.selectedURL(); !ok {
			return m, nil
		}
		m.inDetail = true
		m.detailTop = 0
		return m, m.ensurePreviewCmd()
	case "a":
		m.adding = true
		m.input = ""
		return m, nil
	case "x":
		return m.deleteSelected()
	case "S":
		return m.scanAll(engine.ScanCurrent)
	case "R":
		return m.scanAll(engine.ScanReference)
	case "B":
		if !m.engine.BulkActive() {
			return m, nil
		}
		m.engine.StopBulk()
		return m.flash("Bulk scan stopped", 3*time.Second)
	case "r":
		m.loading = true
		m.warning = ""
		return m, m.engine.Refresh()
	case "u":
		cmd := m.engine.ToggleFeed()
		next, sync := m.syncEngine(cmd)
		nm := next.(Model)
		return nm, tea.Batch(sync, tuiactions.PersistPreferencesCmd(nm.persist, nm.preferences()))
	case "M":
		mode := engine.ScanPoll
		if m.engine.Options().ScanMode == engine.ScanPoll {
			mode = engine.ScanFireAndForget
		}
		m.engine.SetScanMode(mode)
		m.status = fmt.Sprintf("Scan mode: %s", mode)
		return m, tuiactions.PersistPreferencesCmd(m.persist, m.preferences())
	case "w":
		on := !m.engine.Options().AutoFetchReference
		m.engine.SetAutoFetchReference(on)
		m.status = "Auto-fetch reference: " + onOff(on)
		return m, tuiactions.PersistPreferencesCmd(m.persist, m.preferences())
	case "C":
		m.compact = !m.compact
		m.status = "Compact mode: " + onOff(m.compact)
		m.restoreSelection()
		return m, nil
	case "n":
		m.nerdMode = !m.nerdMode
		return m, nil
	}
	return m.handleURLKey(key)
}

func (m Model) handleDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "backspace":
		m.inDetail = false
		m.detailTop = 0
		return m, nil
	case "up", "k":
		if m.detailTop > 0 {
			m.detailTop--
		}
		return m, nil
	case "down", "j":
		if m.detailTop < tuiview.DetailMaxTop(len(m.detailLines()), m.bodyHeight()) {
			m.detailTop++
		}
		return m, nil
	case "[":
		if m.stepSelection(-1) {
			m.detailTop = 0
			return m, m.ensurePreviewCmd()
		}
		return m, nil
	case "]":
		if m.stepSelection(1) {
			m.detailTop = 0
			return m, m.ensurePreviewCmd()
		}
		return m, nil
	case "v":
		switch m.previewLabel {
		case "":
			m.previewLabel = "reference"
		case "reference":
			m.previewLabel = "current"
		default:
			m.previewLabel = ""
		}
		return m, m.ensurePreviewCmd()
	}
	return m.handleURLKey(key)
}

// handleURLKey runs the per-URL verbs shared by list and detail views.
func (m Model) handleURLKey(key string) (tea.Model, tea.Cmd) {
	u, ok := m.selectedURL()
	if !ok {
		return m, nil
	}
	var cmd tea.Cmd
	switch key {
	case "s":
		cmd = m.engine.Scan(u.ID)
	case "i":
		cmd = m.engine.InitReference(u.ID)
	case "m":
		cmd = m.engine.Merge(u.ID)
	case "d":
		cmd = m.engine.Diff(u.ID)
	case "f":
		cmd = m.engine.GetReference(u.ID)
	case "c":
		cmd = m.engine.GetCurrent(u.ID)
	case "p":
		cmd = m.engine.StartPoller(u.ID, engine.ConcernCurrent)
		m.status = fmt.Sprintf("Polling current image for #%d", u.ID)
	case "P":
		stopped := m.engine.StopPoller(u.ID, engine.ConcernCurrent)
		if m.engine.StopPoller(u.ID, engine.ConcernReference) {
			stopped = true
		}
		if !stopped {
			return m, nil
		}
		return m.flash(fmt.Sprintf("Stopped polling #%d", u.ID), 3*time.Second)
	case "o":
		return m, tuiactions.OpenURLCmd(u.URL, m.openURLFn, m.copyURLFn)
	case "y":
		return m, tuiactions.CopyURLCmd(u.URL, m.copyURLFn)
	default:
		return m, nil
	}
	return m.syncEngine(cmd)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		m.adding = false
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		cmd, err := m.engine.Add(m.input)
		if err != nil {
			m.warning = err.Error()
			return m, nil
		}
		m.adding = false
		m.warning = ""
		m.status = "Adding " + m.input
		m.input = ""
		return m, cmd
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

// deleteSelected asks for a second x before deleting.
func (m Model) deleteSelected() (tea.Model, tea.Cmd) {
	u, ok := m.selectedURL()
	if !ok {
		return m, nil
	}
	if m.pendingDeleteID != u.ID {
		m.pendingDeleteID = u.ID
		return m.flash(fmt.Sprintf("Press x again to delete #%d", u.ID), 4*time.Second)
	}
	m.pendingDeleteID = 0
	return m.syncEngine(m.engine.Delete(u.ID))
}

func (m Model) scanAll(kind engine.ScanKind) (tea.Model, tea.Cmd) {
	cmd, err := m.engine.ScanAll(kind)
	if err != nil {
		m.warning = err.Error()
		return m, nil
	}
	m.status = fmt.Sprintf("Requesting %s scan of all urls", kind)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.engine.StopFeed()
	m.engine.StopBulk()
	snapshot := tuiactions.SaveSnapshotCmd(m.persist, m.engine.URLs())
	return m, tea.Sequence(snapshot, tea.Quit)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
