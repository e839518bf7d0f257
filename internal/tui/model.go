package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/app"
	"github.com/glabrego/mug-cli/internal/engine"
	"github.com/glabrego/mug-cli/internal/mug"
	tuiactions "github.com/glabrego/mug-cli/internal/tui/actions"
	tuiplatform "github.com/glabrego/mug-cli/internal/tui/platform"
	tuistate "github.com/glabrego/mug-cli/internal/tui/state"
	tuitheme "github.com/glabrego/mug-cli/internal/tui/theme"
	tuitree "github.com/glabrego/mug-cli/internal/tui/tree"
	tuiview "github.com/glabrego/mug-cli/internal/tui/view"
)

type clearStatusMsg struct {
	id int
}

type previewKey struct {
	id    int64
	label string
}

type previewState struct {
	payload string
	raw     string
	err     string
	loading bool
}

// Model is the bubbletea model. Every engine message passes through Update
// first, so the engine's store is only ever touched on the event loop.
type Model struct {
	engine  *engine.Engine
	persist tuiactions.Persister
	theme   tuitheme.Theme

	treeCursor     int
	selectedID     int64
	selectedHost   string
	compact        bool
	nerdMode       bool
	collapsedHosts map[string]bool

	showHelp  bool
	inDetail  bool
	detailTop int
	width     int
	height    int

	adding          bool
	input           string
	pendingDeleteID int64

	loading   bool
	status    string
	statusID  int
	warning   string
	noticeSeq int
	reported  int

	lastSync           time.Time
	cacheLoadDuration  time.Duration
	cacheLoadedEntries int
	startedAt          time.Time
	initialRefreshTook time.Duration

	previewLabel string
	previews     map[previewKey]previewState

	openURLFn     func(string) error
	copyURLFn     func(string) error
	renderImageFn func(string, int) (string, error)
	nowFn         func() time.Time
	tick          func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
}

func NewModel(eng *engine.Engine, persist tuiactions.Persister) Model {
	m := Model{
		engine:         eng,
		persist:        persist,
		theme:          tuitheme.Default(),
		collapsedHosts: make(map[string]bool),
		previews:       make(map[previewKey]previewState),
		openURLFn:      tuiplatform.OpenURLInBrowser,
		copyURLFn:      tuiplatform.CopyURLToClipboard,
		renderImageFn:  tuiview.RenderInlineImagePreview,
		nowFn:          time.Now,
		tick:           tea.Tick,
		loading:        true,
	}
	_, m.noticeSeq = eng.Notice()
	m.reported = eng.Reported()
	rows := m.treeRows()
	m.treeCursor = tuitree.FirstURLRow(rows)
	m.rememberSelection(rows)
	return m
}

func (m Model) Init() tea.Cmd {
	return m.engine.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.engine.Update(msg); ok {
		return m.syncEngine(cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case engine.RefreshedMsg:
		m.loading = false
		now := m.nowFn()
		if m.lastSync.IsZero() && !m.startedAt.IsZero() {
			m.initialRefreshTook = now.Sub(m.startedAt)
		}
		m.lastSync = now
		m.restoreSelection()
		return m, nil
	case tuiactions.OpenURLSuccessMsg:
		return m.flash(msg.Status, 3*time.Second)
	case tuiactions.OpenURLErrorMsg:
		return m.flash(msg.Err.Error(), 4*time.Second)
	case tuiactions.PreferenceSaveErrorMsg:
		m.warning = msg.Err.Error()
		m.status = "Could not persist UI preferences"
		return m, nil
	case tuiactions.SnapshotSavedMsg:
		return m, nil
	case tuiactions.SnapshotErrorMsg:
		m.warning = msg.Err.Error()
		return m, nil
	case tuiactions.PreviewSuccessMsg:
		key := previewKey{id: msg.ID, label: msg.Label}
		p := m.previews[key]
		p.loading = false
		p.err = ""
		p.raw = msg.Preview
		m.previews[key] = p
		return m, nil
	case tuiactions.PreviewErrorMsg:
		key := previewKey{id: msg.ID, label: msg.Label}
		p := m.previews[key]
		p.loading = false
		p.raw = ""
		p.err = msg.Err.Error()
		m.previews[key] = p
		return m, nil
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	return m, nil
}

// syncEngine surfaces new engine notices and diagnostics and keeps the
// cursor on the same URL after the store changed.
func (m Model) syncEngine(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{cmd}
	if text, seq := m.engine.Notice(); seq != m.noticeSeq {
		m.noticeSeq = seq
		m.warning = ""
		m.status = text
		m.statusID++
		cmds = append(cmds, m.clearStatusCmd(m.statusID, 3*time.Second))
	}
	if n := m.engine.Reported(); n != m.reported {
		m.reported = n
		if d, ok := m.engine.LastDiagnostic(); ok {
			m.warning = d.String()
			if d.Op == "list urls" {
				m.loading = false
			}
		}
	}
	m.restoreSelection()
	if m.inDetail {
		if _, ok := m.selectedURL(); !ok {
			m.inDetail = false
			m.detailTop = 0
		} else {
			cmds = append(cmds, m.ensurePreviewCmd())
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) flash(status string, after time.Duration) (tea.Model, tea.Cmd) {
	m.status = status
	m.statusID++
	return m, m.clearStatusCmd(m.statusID, after)
}

func (m Model) clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return m.tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

// SetStartupCacheStats records how long the cached listing took to load.
func (m *Model) SetStartupCacheStats(duration time.Duration, entries int, startedAt time.Time) {
	m.cacheLoadDuration = duration
	m.cacheLoadedEntries = entries
	m.startedAt = startedAt
}

// SetLastSync seeds the "synced" label from the cache snapshot time.
func (m *Model) SetLastSync(at time.Time) {
	m.lastSync = at
}

// ApplyPreferences sets the engine toggles without persisting them again.
func (m *Model) ApplyPreferences(prefs app.UIPreferences) {
	m.engine.SetAutoFetchReference(prefs.AutoFetchReference)
	if prefs.ScanMode == string(engine.ScanPoll) {
		m.engine.SetScanMode(engine.ScanPoll)
	} else {
		m.engine.SetScanMode(engine.ScanFireAndForget)
	}
}

func (m Model) preferences() app.UIPreferences {
	opts := m.engine.Options()
	return app.UIPreferences{
		FeedEnabled:        m.engine.FeedActive(),
		ScanMode:           string(opts.ScanMode),
		AutoFetchReference: opts.AutoFetchReference,
	}
}

func (m Model) treeRows() []tuitree.Row {
	return tuitree.BuildRows(m.engine.URLs(), tuitree.BuildOptions{
		Compact:        m.compact,
		CollapsedHosts: m.collapsedHosts,
	})
}

func (m Model) selectedURL() (mug.MonitoredURL, bool) {
	if m.selectedID == 0 {
		return mug.MonitoredURL{}, false
	}
	return m.engine.Store().Get(m.selectedID)
}

// rememberSelection records what sits under the tree cursor.
func (m *Model) rememberSelection(rows []tuitree.Row) {
	m.selectedID = 0
	m.selectedHost = ""
	if len(rows) == 0 {
		m.treeCursor = 0
		return
	}
	m.treeCursor = tuistate.ClampCursor(m.treeCursor, len(rows))
	row := rows[m.treeCursor]
	m.selectedHost = row.Host
	if idx, ok := tuistate.SelectedEntry(rows, m.treeCursor); ok {
		urls := m.engine.URLs()
		if idx < len(urls) {
			m.selectedID = urls[idx].ID
		}
	}
}

// restoreSelection moves the cursor back onto the remembered URL. A URL
// hidden under a collapsed host selects the host; a deleted one selects
// whatever now occupies its row.
func (m *Model) restoreSelection() {
	rows := m.treeRows()
	if len(rows) == 0 {
		m.treeCursor = 0
		m.selectedID = 0
		m.selectedHost = ""
		return
	}
	present := m.selectedID != 0 && m.engine.Store().Has(m.selectedID)
	if present {
		idx := tuistate.IndexByID(m.engine.URLs(), m.selectedID)
		if pos := tuistate.TreeCursorForEntry(rows, idx); pos >= 0 {
			m.treeCursor = pos
			return
		}
	}
	if present || m.selectedID == 0 {
		if pos := tuistate.TreeCursorForHost(rows, m.selectedHost); pos >= 0 {
			m.treeCursor = pos
			m.selectedID = 0
			return
		}
	}
	m.rememberSelection(rows)
}

func (m *Model) moveCursorBy(delta int) {
	rows := m.treeRows()
	if len(rows) == 0 {
		return
	}
	m.treeCursor = tuistate.ClampCursor(m.treeCursor+delta, len(rows))
	m.rememberSelection(rows)
}

func (m *Model) moveCursorTo(pos int) {
	rows := m.treeRows()
	if len(rows) == 0 {
		return
	}
	m.treeCursor = tuistate.ClampCursor(pos, len(rows))
	m.rememberSelection(rows)
}

// stepSelection moves to the previous or next URL in listing order, used by
// detail view navigation.
func (m *Model) stepSelection(delta int) bool {
	urls := m.engine.URLs()
	idx := tuistate.IndexByID(urls, m.selectedID)
	if idx < 0 {
		return false
	}
	next := idx + delta
	if next < 0 || next >= len(urls) {
		return false
	}
	m.selectedID = urls[next].ID
	m.selectedHost = tuitree.HostName(urls[next])
	delete(m.collapsedHosts, m.selectedHost)
	m.restoreSelection()
	return true
}

func (m *Model) collapseCurrentHost() {
	rows := m.treeRows()
	if len(rows) == 0 || m.compact {
		return
	}
	host := rows[tuistate.ClampCursor(m.treeCursor, len(rows))].Host
	if host == "" {
		return
	}
	m.collapsedHosts[host] = true
	m.selectedID = 0
	m.selectedHost = host
	m.restoreSelection()
}

func (m *Model) expandCurrentHost() {
	rows := m.treeRows()
	if len(rows) == 0 || m.compact {
		return
	}
	host := rows[tuistate.ClampCursor(m.treeCursor, len(rows))].Host
	delete(m.collapsedHosts, host)
}

func (m Model) contentWidth() int {
	if m.width > 0 {
		return m.width - 1
	}
	return 100
}

func (m Model) bodyHeight() int {
	if m.height > 0 {
		used := 7
		if m.status != "" || m.warning != "" {
			used += 2
		}
		if h := m.height - used; h > 3 {
			return h
		}
	}
	return 16
}

func (m Model) detailLines() []string {
	u, ok := m.selectedURL()
	if !ok {
		return nil
	}
	info := tuiview.DetailInfo{Phase: string(m.engine.Phase(u.ID))}
	for _, c := range []engine.Concern{engine.ConcernReference, engine.ConcernCurrent} {
		if m.engine.PollerActive(u.ID, c) {
			info.Pollers = append(info.Pollers, string(c))
		}
	}
	return tuiview.DetailLines(u, info, m.contentWidth()-2, 2, tuiview.WrapText, m.previewFor(u))
}

func (m Model) previewFor(u mug.MonitoredURL) tuiview.InlineImagePreviewState {
	if m.previewLabel == "" {
		return tuiview.InlineImagePreviewState{}
	}
	p := m.previews[previewKey{id: u.ID, label: m.previewLabel}]
	state := tuiview.InlineImagePreviewState{
		Enabled: true,
		Label:   m.previewLabel,
		Loading: p.loading,
		Raw:     p.raw,
		Err:     p.err,
	}
	if strings.TrimSpace(previewPayload(u, m.previewLabel)) == "" {
		state.Raw = ""
		state.Loading = false
		state.Err = "no " + m.previewLabel + " image yet"
	}
	return state
}

func previewPayload(u mug.MonitoredURL, label string) string {
	if label == "reference" {
		return u.Reference
	}
	return u.Current
}

// ensurePreviewCmd renders the selected image when it changed since the
// last render. Payload changes from the feed or pollers invalidate it.
func (m *Model) ensurePreviewCmd() tea.Cmd {
	if m.previewLabel == "" {
		return nil
	}
	u, ok := m.selectedURL()
	if !ok {
		return nil
	}
	payload := previewPayload(u, m.previewLabel)
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	key := previewKey{id: u.ID, label: m.previewLabel}
	if p, ok := m.previews[key]; ok && p.payload == payload {
		return nil
	}
	m.previews[key] = previewState{payload: payload, loading: true}
	return tuiactions.PreviewCmd(u.ID, m.previewLabel, payload, m.contentWidth()-4, m.renderImageFn)
}
