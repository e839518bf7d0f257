package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/app"
	"github.com/glabrego/mug-cli/internal/engine"
	"github.com/glabrego/mug-cli/internal/mug"
)

type fakeBackend struct {
	listed    []mug.MonitoredURL
	listErr   error
	nextID    int64
	added     []string
	deleted   []int64
	scanned   []int64
	diff      mug.DiffResult
	reference string
}

func (f *fakeBackend) List(context.Context) ([]mug.MonitoredURL, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listed, nil
}

func (f *fakeBackend) AddURL(_ context.Context, rawURL string) (int64, error) {
	f.added = append(f.added, rawURL)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeBackend) DeleteURL(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) TriggerScan(_ context.Context, id int64) (string, error) {
	f.scanned = append(f.scanned, id)
	return "", nil
}

func (f *fakeBackend) ScanAll(context.Context, string) ([]int64, error) { return nil, nil }

func (f *fakeBackend) CurrentImage(context.Context, int64) (string, error) { return "", nil }

func (f *fakeBackend) ReferenceImage(context.Context, int64) (string, error) {
	return f.reference, nil
}

func (f *fakeBackend) StoredImage(context.Context, int64) (string, error) { return "", nil }

func (f *fakeBackend) InitReference(context.Context, int64) error { return nil }

func (f *fakeBackend) Merge(context.Context, int64) error { return nil }

func (f *fakeBackend) Diff(context.Context, int64) (mug.DiffResult, error) { return f.diff, nil }

func (f *fakeBackend) PollUpdate(context.Context) (*mug.Update, error) { return nil, nil }

type fakePersister struct {
	prefs    app.UIPreferences
	saved    int
	snapshot []mug.MonitoredURL
}

func (f *fakePersister) SaveSnapshot(_ context.Context, urls []mug.MonitoredURL) error {
	f.snapshot = urls
	return nil
}

func (f *fakePersister) SaveUIPreferences(_ context.Context, prefs app.UIPreferences) error {
	f.prefs = prefs
	f.saved++
	return nil
}

type ticks struct {
	count int
}

func (t *ticks) tick(time.Duration, func(time.Time) tea.Msg) tea.Cmd {
	t.count++
	return nil
}

var testNow = time.Date(2026, 2, 11, 16, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, backend *fakeBackend, opts engine.Options, seed ...mug.MonitoredURL) (Model, *fakePersister) {
	t.Helper()
	eng := engine.New(backend, opts)
	eng.Seed(seed)
	persist := &fakePersister{}
	m := NewModel(eng, persist)
	m.tick = (&ticks{}).tick
	m.nowFn = func() time.Time { return testNow }
	m.openURLFn = func(string) error { return nil }
	m.copyURLFn = func(string) error { return nil }
	m.renderImageFn = func(payload string, _ int) (string, error) { return "IMG<" + payload + ">", nil }
	return m, persist
}

// drain runs cmd and every command it produces, feeding messages back into
// the model like the bubbletea runtime.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, more := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, c := m.Update(msg)
		m = updated.(Model)
		cmd = c
	}
	return m, cmd
}

func sampleURLs() []mug.MonitoredURL {
	return []mug.MonitoredURL{
		{ID: 1, URL: "https://b.example/pricing"},
		{ID: 2, URL: "https://a.example/"},
		{ID: 3, URL: "https://b.example/home", Reference: "data:image/png;base64,AAAA"},
	}
}

func TestModelView_ShowsURLsGroupedByHost(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)

	view := m.View()
	for _, want := range []string{"a.example", "b.example", "#1", "https://b.example/pricing", "> #2"} {
		if !strings.Contains(stripANSIForTest(view), want) {
			t.Fatalf("expected %q in view, got:\n%s", want, view)
		}
	}
	if m.selectedID != 2 {
		t.Fatalf("expected first url row (#2 under a.example) selected, got %d", m.selectedID)
	}
}

func TestModelUpdate_RefreshLoadsListing(t *testing.T) {
	backend := &fakeBackend{listed: sampleURLs()}
	m, _ := newTestModel(t, backend, engine.Options{})

	if !strings.Contains(m.View(), "Loading monitored URLs") {
		t.Fatalf("expected loading placeholder before first refresh, got:\n%s", m.View())
	}

	m = drain(t, m, m.Init())
	if m.loading {
		t.Fatal("expected loading to end after refresh")
	}
	if !m.lastSync.Equal(testNow) {
		t.Fatalf("expected last sync recorded, got %s", m.lastSync)
	}
	if m.status != "Loaded 3 urls" {
		t.Fatalf("unexpected status: %q", m.status)
	}
	if m.engine.Store().Len() != 3 {
		t.Fatalf("expected 3 urls in store, got %d", m.engine.Store().Len())
	}
}

func TestModelUpdate_RefreshError(t *testing.T) {
	backend := &fakeBackend{listErr: &mug.TransportError{Op: "list urls", StatusCode: 502}}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)

	m, cmd := press(t, m, "r")
	if cmd == nil {
		t.Fatal("expected refresh command")
	}
	m = drain(t, m, cmd)
	if m.loading {
		t.Fatal("expected loading to end after failed refresh")
	}
	if !strings.Contains(m.warning, "list urls") {
		t.Fatalf("expected list warning, got %q", m.warning)
	}
	if m.engine.Store().Len() != 3 {
		t.Fatal("expected cached listing kept after failed refresh")
	}
}

func TestModelUpdate_NavigateAndOpenDetail(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)

	m, _ = press(t, m, "j")
	if m.selectedID != 0 || m.selectedHost != "b.example" {
		t.Fatalf("expected host row selected, got id=%d host=%q", m.selectedID, m.selectedHost)
	}
	m, _ = press(t, m, "j")
	if m.selectedID != 1 {
		t.Fatalf("expected #1 selected, got %d", m.selectedID)
	}

	m, _ = press(t, m, "enter")
	if !m.inDetail {
		t.Fatal("expected detail view")
	}
	if view := m.View(); !strings.Contains(view, "#1 https://b.example/pricing") {
		t.Fatalf("expected detail title, got:\n%s", view)
	}

	m, _ = press(t, m, "]")
	if m.selectedID != 2 {
		t.Fatalf("expected ] to step to #2 in listing order, got %d", m.selectedID)
	}

	m, _ = press(t, m, "esc")
	if m.inDetail {
		t.Fatal("expected esc to return to list")
	}
}

func TestModelUpdate_CollapseAndExpandHost(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)
	m, _ = press(t, m, "j", "j")

	m, _ = press(t, m, "h")
	if !m.collapsedHosts["b.example"] {
		t.Fatal("expected b.example collapsed")
	}
	if m.selectedID != 0 || m.selectedHost != "b.example" {
		t.Fatalf("expected cursor on collapsed host, got id=%d host=%q", m.selectedID, m.selectedHost)
	}
	if strings.Contains(m.View(), "https://b.example/pricing") {
		t.Fatal("expected collapsed urls hidden")
	}

	m, _ = press(t, m, "l")
	if m.collapsedHosts["b.example"] {
		t.Fatal("expected b.example expanded")
	}
}

func TestModelUpdate_AddURL(t *testing.T) {
	backend := &fakeBackend{nextID: 40}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)

	m, _ = press(t, m, "a", "ftp://nope", "enter")
	if !m.adding || m.warning == "" {
		t.Fatalf("expected invalid url to keep input open with a warning, adding=%v warning=%q", m.adding, m.warning)
	}
	if len(backend.added) != 0 {
		t.Fatal("expected no backend call for invalid url")
	}

	for range "ftp://nope" {
		m, _ = press(t, m, "backspace")
	}
	m, cmd := press(t, m, "https://new.example", "enter")
	if m.adding {
		t.Fatal("expected input closed after valid url")
	}
	m = drain(t, m, cmd)

	if len(backend.added) != 1 || backend.added[0] != "https://new.example" {
		t.Fatalf("unexpected backend adds: %v", backend.added)
	}
	if _, ok := m.engine.Store().Get(41); !ok {
		t.Fatal("expected new url #41 in store")
	}
	if m.status != "Added #41 https://new.example" {
		t.Fatalf("unexpected status: %q", m.status)
	}
}

func TestModelUpdate_DeleteNeedsConfirmation(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)

	m, _ = press(t, m, "x")
	if !m.engine.Store().Has(2) {
		t.Fatal("expected first x to only ask for confirmation")
	}
	if !strings.Contains(m.status, "Press x again") {
		t.Fatalf("unexpected status: %q", m.status)
	}

	m, cmd := press(t, m, "x")
	if m.engine.Store().Has(2) {
		t.Fatal("expected #2 removed after confirmation")
	}
	m = drain(t, m, cmd)
	if len(backend.deleted) != 1 || backend.deleted[0] != 2 {
		t.Fatalf("unexpected backend deletes: %v", backend.deleted)
	}
	if m.selectedID == 2 {
		t.Fatal("expected selection to move off the deleted url")
	}
}

func TestModelUpdate_DeleteConfirmationResetByOtherKey(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)

	m, _ = press(t, m, "x", "n", "x")
	if !m.engine.Store().Has(2) {
		t.Fatal("expected another key to cancel the pending delete")
	}
}

func TestModelUpdate_ScanAndDiff(t *testing.T) {
	backend := &fakeBackend{diff: mug.DiffResult{Output: "12 pixels differ", Status: "1"}}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)

	m, cmd := press(t, m, "s")
	m = drain(t, m, cmd)
	if len(backend.scanned) != 1 || backend.scanned[0] != 2 {
		t.Fatalf("unexpected scans: %v", backend.scanned)
	}
	if m.status != "Scan of #2 started" {
		t.Fatalf("unexpected status: %q", m.status)
	}

	m, _ = press(t, m, "enter")
	m, cmd = press(t, m, "d")
	if !strings.Contains(m.View(), "Phase: diffing") {
		t.Fatalf("expected diffing phase while request is in flight, got:\n%s", m.View())
	}
	m = drain(t, m, cmd)
	view := m.View()
	if !strings.Contains(view, "12 pixels differ") || !strings.Contains(view, "Status: 1") {
		t.Fatalf("expected diff output in detail, got:\n%s", view)
	}
}

func TestModelUpdate_TogglesPersistPreferences(t *testing.T) {
	m, persist := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)

	m, cmd := press(t, m, "M")
	m = drain(t, m, cmd)
	if m.engine.Options().ScanMode != engine.ScanPoll || persist.prefs.ScanMode != "poll" {
		t.Fatalf("expected poll mode persisted, got %+v", persist.prefs)
	}

	m, cmd = press(t, m, "w")
	m = drain(t, m, cmd)
	if !persist.prefs.AutoFetchReference {
		t.Fatalf("expected auto-fetch persisted, got %+v", persist.prefs)
	}
	if persist.saved != 2 {
		t.Fatalf("expected 2 saves, got %d", persist.saved)
	}
}

func TestModelUpdate_ToggleFeedOffPersists(t *testing.T) {
	m, persist := newTestModel(t, &fakeBackend{}, engine.Options{FeedEnabled: true}, sampleURLs()...)
	m.engine.StartFeed()

	m, cmd := press(t, m, "u")
	m = drain(t, m, cmd)
	if m.engine.FeedActive() {
		t.Fatal("expected feed stopped")
	}
	if m.status != "Update feed off" {
		t.Fatalf("unexpected status: %q", m.status)
	}
	if persist.saved != 1 || persist.prefs.FeedEnabled {
		t.Fatalf("expected feed-off persisted, got %+v (saves=%d)", persist.prefs, persist.saved)
	}
}

func TestModelUpdate_PreviewCyclesImages(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)
	m, _ = press(t, m, "j", "j", "j")
	if m.selectedID != 3 {
		t.Fatalf("expected #3 selected, got %d", m.selectedID)
	}
	m, _ = press(t, m, "enter")

	m, cmd := press(t, m, "v")
	if m.previewLabel != "reference" {
		t.Fatalf("expected reference preview, got %q", m.previewLabel)
	}
	if !strings.Contains(m.View(), "Loading reference preview") {
		t.Fatalf("expected loading preview, got:\n%s", m.View())
	}
	m = drain(t, m, cmd)
	if !strings.Contains(m.View(), "IMG<data:image/png;base64,AAAA>") {
		t.Fatalf("expected rendered preview, got:\n%s", m.View())
	}

	m, cmd = press(t, m, "v")
	if cmd != nil {
		t.Fatal("expected no render for a missing current image")
	}
	if !strings.Contains(m.View(), "Preview of current unavailable: no current image yet") {
		t.Fatalf("expected missing-image note, got:\n%s", m.View())
	}

	m, _ = press(t, m, "v")
	if m.previewLabel != "" {
		t.Fatalf("expected preview off, got %q", m.previewLabel)
	}
}

func TestModelUpdate_FetchedReferenceRefreshesPreview(t *testing.T) {
	backend := &fakeBackend{reference: "data:image/png;base64,BBBB"}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)
	m, _ = press(t, m, "j", "j", "j", "enter")
	m, cmd := press(t, m, "v")
	m = drain(t, m, cmd)

	m, cmd = press(t, m, "f")
	m = drain(t, m, cmd)
	if !strings.Contains(m.View(), "IMG<data:image/png;base64,BBBB>") {
		t.Fatalf("expected preview re-rendered for new reference, got:\n%s", m.View())
	}
}

func TestModelUpdate_OpenURLFallsBackToClipboard(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)
	var copied string
	m.openURLFn = func(string) error { return errors.New("no browser") }
	m.copyURLFn = func(u string) error { copied = u; return nil }

	m, cmd := press(t, m, "o")
	m = drain(t, m, cmd)
	if copied != "https://a.example/" {
		t.Fatalf("unexpected copied url: %q", copied)
	}
	if m.status != "Could not open browser, URL copied to clipboard" {
		t.Fatalf("unexpected status: %q", m.status)
	}
}

func TestModelUpdate_ClearStatusMatchesID(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{}, sampleURLs()...)
	m.status = "hello"
	m.statusID = 4

	updated, _ := m.Update(clearStatusMsg{id: 3})
	m = updated.(Model)
	if m.status != "hello" {
		t.Fatal("expected stale clear to be ignored")
	}
	updated, _ = m.Update(clearStatusMsg{id: 4})
	m = updated.(Model)
	if m.status != "" {
		t.Fatal("expected status cleared")
	}
}

func TestModelUpdate_QuitStopsFeedAndSavesSnapshot(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{}, engine.Options{FeedEnabled: true}, sampleURLs()...)
	m.engine.StartFeed()

	m, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.engine.FeedActive() {
		t.Fatal("expected feed stopped on quit")
	}
}

func TestModelView_HelpListsRecentProblems(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("connection refused")}
	m, _ := newTestModel(t, backend, engine.Options{}, sampleURLs()...)
	m, cmd := press(t, m, "r")
	m = drain(t, m, cmd)

	m, _ = press(t, m, "?")
	view := m.View()
	if !strings.Contains(view, "Recent problems:") || !strings.Contains(view, "list urls: connection refused") {
		t.Fatalf("expected diagnostics in help, got:\n%s", view)
	}
}

func stripANSIForTest(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
