// Package engine keeps the local list of monitored URLs in sync with the mug
// backend. All state is owned by the bubbletea update loop: network calls run
// inside tea.Cmd closures and come back as messages, and timers are tea.Tick
// commands tagged with a generation so that cancelled ones are ignored on
// arrival.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/mug"
)

type Backend interface {
	List(ctx context.Context) ([]mug.MonitoredURL, error)
	AddURL(ctx context.Context, rawURL string) (int64, error)
	DeleteURL(ctx context.Context, id int64) error
	TriggerScan(ctx context.Context, id int64) (string, error)
	ScanAll(ctx context.Context, kind string) ([]int64, error)
	CurrentImage(ctx context.Context, id int64) (string, error)
	ReferenceImage(ctx context.Context, id int64) (string, error)
	StoredImage(ctx context.Context, id int64) (string, error)
	InitReference(ctx context.Context, id int64) error
	Merge(ctx context.Context, id int64) error
	Diff(ctx context.Context, id int64) (mug.DiffResult, error)
	PollUpdate(ctx context.Context) (*mug.Update, error)
}

// ScanMode selects what happens after a single scan is triggered.
type ScanMode string

const (
	// ScanFireAndForget only triggers the capture; the update feed delivers it.
	ScanFireAndForget ScanMode = "fire"
	// ScanPoll arms a retry poller that fetches the capture once it exists.
	ScanPoll ScanMode = "poll"
)

type Options struct {
	RetryInterval      time.Duration
	RetryMaxAttempts   int
	FeedInterval       time.Duration
	BulkInterval       time.Duration
	RequestTimeout     time.Duration
	ScanMode           ScanMode
	AutoFetchReference bool
	FeedEnabled        bool
	Logger             *slog.Logger
}

func (o *Options) defaults() {
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.FeedInterval <= 0 {
		o.FeedInterval = 5 * time.Second
	}
	if o.BulkInterval <= 0 {
		o.BulkInterval = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.RetryMaxAttempts < 0 {
		o.RetryMaxAttempts = 0
	}
	if o.ScanMode == "" {
		o.ScanMode = ScanFireAndForget
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Diagnostic is a failure reported to the user instead of being retried.
type Diagnostic struct {
	At  time.Time
	Op  string
	ID  int64
	Err error
}

func (d Diagnostic) String() string {
	if d.ID != 0 {
		return fmt.Sprintf("%s #%d: %v", d.Op, d.ID, d.Err)
	}
	return fmt.Sprintf("%s: %v", d.Op, d.Err)
}

const maxDiagnostics = 50

type Engine struct {
	backend Backend
	opts    Options
	log     *slog.Logger
	store   *Store
	handles *handles
	feed    feedState
	bulk    bulkState
	diffing map[int64]int

	// refreshSeq counts listing requests; touched holds, per id, the
	// refreshSeq current at its last local change. A listing requested
	// before that change must not overwrite or drop the record.
	refreshSeq uint64
	appliedSeq uint64
	touched    map[int64]uint64
	// tombstones are ids deleted locally that a listing may still carry.
	tombstones map[int64]bool

	diagnostics []Diagnostic
	reported    int
	notice      string
	noticeSeq   int

	tick  func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
	nowFn func() time.Time
}

func New(backend Backend, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		backend:    backend,
		opts:       opts,
		log:        opts.Logger,
		store:      NewStore(),
		handles:    newHandles(),
		diffing:    make(map[int64]int),
		touched:    make(map[int64]uint64),
		tombstones: make(map[int64]bool),
		tick:       tea.Tick,
		nowFn:      time.Now,
	}
}

// Seed fills the store from a cached listing before the first refresh.
func (e *Engine) Seed(urls []mug.MonitoredURL) {
	for _, u := range urls {
		e.store.Append(u)
	}
}

// Init refreshes the listing and starts the update feed when enabled.
func (e *Engine) Init() tea.Cmd {
	cmds := []tea.Cmd{e.Refresh()}
	if e.opts.FeedEnabled {
		cmds = append(cmds, e.StartFeed())
	}
	return tea.Batch(cmds...)
}

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) URLs() []mug.MonitoredURL { return e.store.List() }

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) SetScanMode(mode ScanMode) { e.opts.ScanMode = mode }

func (e *Engine) SetAutoFetchReference(on bool) { e.opts.AutoFetchReference = on }

// Diagnostics returns reported failures, oldest first.
func (e *Engine) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), e.diagnostics...)
}

func (e *Engine) LastDiagnostic() (Diagnostic, bool) {
	if len(e.diagnostics) == 0 {
		return Diagnostic{}, false
	}
	return e.diagnostics[len(e.diagnostics)-1], true
}

// Reported counts every diagnostic since start, including ones that have
// aged out of Diagnostics.
func (e *Engine) Reported() int { return e.reported }

// Notice is the latest success message and a sequence number that changes
// whenever it is replaced.
func (e *Engine) Notice() (string, int) { return e.notice, e.noticeSeq }

func (e *Engine) PollerActive(id int64, concern Concern) bool {
	return e.handles.active(pollerKey{ID: id, Concern: concern})
}

// ActivePollers is the number of registered retry pollers.
func (e *Engine) ActivePollers() int { return e.handles.count() }

// Phase is the derived lifecycle stage of a monitored URL.
type Phase string

const (
	PhaseAdded        Phase = "added"
	PhaseInitializing Phase = "initializing"
	PhaseScanning     Phase = "scanning"
	PhaseDiffing      Phase = "diffing"
	PhaseSettled      Phase = "settled"
)

func (e *Engine) Phase(id int64) Phase {
	rec, ok := e.store.Get(id)
	if !ok {
		return ""
	}
	switch {
	case e.diffing[id] > 0:
		return PhaseDiffing
	case e.PollerActive(id, ConcernCurrent) || e.bulk.contains(id):
		return PhaseScanning
	case rec.Reference == "" && e.PollerActive(id, ConcernReference):
		return PhaseInitializing
	case rec.Reference == "" && rec.Current == "" && rec.DiffOutput == "":
		return PhaseAdded
	default:
		return PhaseSettled
	}
}

// Update applies a message produced by one of the engine's commands. The
// second result is false for messages the engine does not own.
func (e *Engine) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case listResultMsg:
		return e.handleList(msg), true
	case addResultMsg:
		return e.handleAdd(msg), true
	case deleteResultMsg:
		e.handleDelete(msg)
		return nil, true
	case scanResultMsg:
		return e.handleScan(msg), true
	case ackResultMsg:
		e.handleAck(msg)
		return nil, true
	case diffResultMsg:
		e.handleDiff(msg)
		return nil, true
	case imageResultMsg:
		e.handleImage(msg)
		return nil, true
	case pollTickMsg:
		return e.handlePollTick(msg), true
	case pollResultMsg:
		return e.handlePollResult(msg), true
	case feedTickMsg:
		return e.handleFeedTick(msg), true
	case feedResultMsg:
		e.handleFeedResult(msg)
		return nil, true
	case scanAllResultMsg:
		return e.handleScanAll(msg), true
	case bulkTickMsg:
		return e.handleBulkTick(msg), true
	case bulkResultMsg:
		return e.handleBulkResult(msg), true
	}
	return nil, false
}

func (e *Engine) report(op string, id int64, err error) {
	d := Diagnostic{At: e.nowFn(), Op: op, ID: id, Err: err}
	e.diagnostics = append(e.diagnostics, d)
	e.reported++
	if len(e.diagnostics) > maxDiagnostics {
		e.diagnostics = e.diagnostics[len(e.diagnostics)-maxDiagnostics:]
	}
	e.log.Warn("action failed", "op", op, "id", id, "error", err)
}

func (e *Engine) announce(format string, args ...any) {
	e.notice = fmt.Sprintf(format, args...)
	e.noticeSeq++
}

// call runs fn with the engine's request timeout. It is used inside tea.Cmd
// closures and must not touch engine state.
func call[T any](timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx)
}
