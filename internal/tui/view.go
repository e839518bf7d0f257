package tui

import (
	"fmt"
	"strings"

	tuistate "github.com/glabrego/mug-cli/internal/tui/state"
	tuiview "github.com/glabrego/mug-cli/internal/tui/view"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	switch {
	case m.showHelp:
		b.WriteString("Help (? to close)\n\n")
		b.WriteString(m.helpView())
		b.WriteString("\n")
	case m.adding:
		b.WriteString("Add URL (enter to submit, esc to cancel)\n\n")
		b.WriteString("> " + m.input + "█\n")
	case m.inDetail:
		b.WriteString(tuiview.Toolbar(m.nerdMode, true))
		b.WriteString("\n\n")
		b.WriteString(m.detailView())
	default:
		b.WriteString(tuiview.Toolbar(m.nerdMode, false))
		b.WriteString("\n\n")
		b.WriteString(m.listView())
	}

	b.WriteString("\n")
	b.WriteString(m.messagePanel())
	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n")
	return b.String()
}

func (m Model) header() string {
	mode := "list"
	switch {
	case m.adding:
		mode = "add"
	case m.inDetail:
		mode = "detail"
	}
	return m.theme.Title.Render("mug") + " " + m.theme.ModePill.Render(mode)
}

func (m Model) listView() string {
	urls := m.engine.URLs()
	if len(urls) == 0 {
		if m.loading {
			return "Loading monitored URLs...\n"
		}
		return "No monitored URLs. Press a to add one.\n"
	}

	rows := m.treeRows()
	start, end := tuistate.CenteredWindow(len(rows), m.treeCursor, m.bodyHeight())
	width := m.contentWidth()
	return tuiview.RenderListBody(tuiview.ListRenderInput{
		Rows:           rows,
		Start:          start,
		End:            end,
		VisiblePos:     tuistate.URLRowsBefore(rows, start),
		TreeCursor:     m.treeCursor,
		CollapsedHosts: m.collapsedHosts,
		RenderHostLine: func(left string, count int, active bool) string {
			return tuiview.RenderHostLine(left, count, width, active, m.theme)
		},
		RenderURLLine: func(entryIndex, visiblePos int, active bool) string {
			u := urls[entryIndex]
			return tuiview.RenderURLLine(tuiview.URLLineParams{
				URL:        u,
				Phase:      string(m.engine.Phase(u.ID)),
				Compact:    m.compact,
				Indent:     !m.compact,
				VisiblePos: visiblePos,
				Active:     active,
				Width:      width,
			}, m.theme)
		},
	})
}

func (m Model) detailView() string {
	lines := m.detailLines()
	if len(lines) == 0 {
		return "No URL selected.\n"
	}
	return tuiview.RenderDetailLines(lines, m.detailTop, m.bodyHeight())
}

func (m Model) messagePanel() string {
	if m.nerdMode {
		status := "-"
		if m.status != "" {
			status = m.status
		}
		warning := "-"
		if m.warning != "" {
			warning = m.warning
		}
		return tuiview.NerdMessage(status, warning, m.stateLabel(), m.startupMetrics())
	}
	return tuiview.CompactMessage(m.loading, m.warning != "", m.status, m.warning, m.theme)
}

func (m Model) stateLabel() string {
	switch {
	case m.warning != "":
		return "warning"
	case m.loading:
		return "loading"
	}
	return "idle"
}

func (m Model) footer() string {
	mode := "list"
	if m.inDetail {
		mode = "detail"
	}
	opts := m.engine.Options()
	info := tuiview.FooterInfo{
		Mode:        mode,
		ScanMode:    string(opts.ScanMode),
		FeedOn:      m.engine.FeedActive(),
		AutoRef:     opts.AutoFetchReference,
		Pollers:     m.engine.ActivePollers(),
		BulkPending: m.engine.BulkPending(),
		Shown:       m.engine.Store().Len(),
		LastSync:    m.lastSync,
		Now:         m.nowFn(),
	}
	if m.nerdMode {
		return tuiview.NerdFooter(info)
	}
	return tuiview.CompactFooter(info, m.theme)
}

func (m Model) startupMetrics() string {
	cachePart := "cache n/a"
	if m.cacheLoadDuration > 0 || m.cacheLoadedEntries > 0 {
		cachePart = fmt.Sprintf("cache %dms (%d urls)", m.cacheLoadDuration.Milliseconds(), m.cacheLoadedEntries)
	}
	refreshPart := "initial refresh pending"
	if m.initialRefreshTook > 0 {
		refreshPart = fmt.Sprintf("initial refresh %dms", m.initialRefreshTook.Milliseconds())
	} else if !m.lastSync.IsZero() && !m.loading {
		refreshPart = "refreshed"
	}
	return cachePart + ", " + refreshPart
}

func (m Model) helpView() string {
	lines := []string{
		"Navigation:",
		"  j/k or arrows move, g/G jump top/bottom, pgup/pgdown jump page",
		"  URLs are grouped by host; h collapses, l expands, C toggles a flat list",
		"  enter opens detail, esc/backspace returns, [ ] step through URLs",
		"URLs:",
		"  a add, x x delete, r reload the list",
		"Captures:",
		"  s scan, i init reference, m merge current into reference, d diff",
		"  f fetch reference, c fetch current, p poll current until ready, P stop polling",
		"  S scan all current, R scan all references, B stop bulk scan",
		"  v (detail) cycle image preview: reference, current, off",
		"Options:",
		"  u update feed, M scan mode (fire/poll), w auto-fetch reference on add, n verbose status",
		"  o open URL, y copy URL",
	}
	diags := m.engine.Diagnostics()
	if len(diags) > 0 {
		lines = append(lines, "Recent problems:")
		from := len(diags) - 5
		if from < 0 {
			from = 0
		}
		for i := len(diags) - 1; i >= from; i-- {
			d := diags[i]
			lines = append(lines, fmt.Sprintf("  %s %s", d.At.Format("15:04:05"), d.String()))
		}
	}
	return strings.Join(lines, "\n")
}
