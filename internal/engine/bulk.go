package engine

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/metrics"
)

// ScanKind selects which capture a bulk scan refreshes.
type ScanKind string

const (
	ScanCurrent   ScanKind = "current"
	ScanReference ScanKind = "reference"
)

type bulkItem struct {
	id   int64
	kind ScanKind
}

// bulkState is the single queue drained by the sequencer. A run keeps its
// generation until the queue is empty and nothing is in flight.
type bulkState struct {
	gen      uint64
	ticking  bool
	queue    []bulkItem
	inFlight *bulkItem
}

func (b *bulkState) active() bool { return b.ticking || b.inFlight != nil }

func (b *bulkState) contains(id int64) bool {
	if b.inFlight != nil && b.inFlight.id == id {
		return true
	}
	for _, it := range b.queue {
		if it.id == id {
			return true
		}
	}
	return false
}

func (b *bulkState) has(item bulkItem) bool {
	if b.inFlight != nil && *b.inFlight == item {
		return true
	}
	for _, it := range b.queue {
		if it == item {
			return true
		}
	}
	return false
}

func (b *bulkState) remove(id int64) {
	kept := b.queue[:0]
	for _, it := range b.queue {
		if it.id != id {
			kept = append(kept, it)
		}
	}
	b.queue = kept
}

type scanAllResultMsg struct {
	kind ScanKind
	ids  []int64
	err  error
}

type bulkTickMsg struct {
	gen uint64
}

type bulkResultMsg struct {
	gen  uint64
	item bulkItem
	data string
	err  error
}

// ScanAll asks the backend to queue a capture of kind for every URL and
// drains the returned ids one per BulkInterval.
func (e *Engine) ScanAll(kind ScanKind) (tea.Cmd, error) {
	if kind != ScanCurrent && kind != ScanReference {
		return nil, fmt.Errorf("unsupported scan kind %q", kind)
	}
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		ids, err := call(timeout, func(ctx context.Context) ([]int64, error) {
			return backend.ScanAll(ctx, string(kind))
		})
		return scanAllResultMsg{kind: kind, ids: ids, err: err}
	}, nil
}

// StopBulk drops the queue. A fetch still in flight is ignored on arrival.
func (e *Engine) StopBulk() {
	e.bulk = bulkState{}
}

func (e *Engine) BulkActive() bool { return e.bulk.active() }

// BulkPending is the number of ids queued or in flight.
func (e *Engine) BulkPending() int {
	n := len(e.bulk.queue)
	if e.bulk.inFlight != nil {
		n++
	}
	return n
}

func (e *Engine) handleScanAll(msg scanAllResultMsg) tea.Cmd {
	if msg.err != nil {
		e.report("scan all", 0, msg.err)
		return nil
	}
	added := 0
	for _, id := range msg.ids {
		item := bulkItem{id: id, kind: msg.kind}
		if e.bulk.has(item) {
			continue
		}
		e.bulk.queue = append(e.bulk.queue, item)
		added++
	}
	e.announce("Queued %d %s scans", added, msg.kind)
	e.log.Info("bulk scan queued", "kind", string(msg.kind), "ids", len(msg.ids), "added", added)
	return e.armBulk()
}

// armBulk starts ticking unless a tick is already pending.
func (e *Engine) armBulk() tea.Cmd {
	if e.bulk.ticking || len(e.bulk.queue) == 0 {
		return nil
	}
	if e.bulk.inFlight == nil {
		e.bulk.gen = e.handles.next()
	}
	e.bulk.ticking = true
	gen := e.bulk.gen
	return e.tick(e.opts.BulkInterval, func(time.Time) tea.Msg {
		return bulkTickMsg{gen: gen}
	})
}

func (e *Engine) handleBulkTick(msg bulkTickMsg) tea.Cmd {
	if !e.bulk.ticking || msg.gen != e.bulk.gen {
		return nil
	}
	e.bulk.ticking = false
	if e.bulk.inFlight != nil {
		return e.armBulk()
	}

	var item bulkItem
	found := false
	for len(e.bulk.queue) > 0 {
		item = e.bulk.queue[0]
		e.bulk.queue = e.bulk.queue[1:]
		if e.store.Has(item.id) {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	e.bulk.inFlight = &item
	fetch := e.bulkFetch(msg.gen, item)
	return tea.Batch(fetch, e.armBulk())
}

func (e *Engine) bulkFetch(gen uint64, item bulkItem) tea.Cmd {
	fetch := e.backend.CurrentImage
	if item.kind == ScanReference {
		fetch = e.backend.ReferenceImage
	}
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		data, err := call(timeout, func(ctx context.Context) (string, error) {
			return fetch(ctx, item.id)
		})
		return bulkResultMsg{gen: gen, item: item, data: data, err: err}
	}
}

func (e *Engine) handleBulkResult(msg bulkResultMsg) tea.Cmd {
	if msg.gen != e.bulk.gen || e.bulk.inFlight == nil || *e.bulk.inFlight != msg.item {
		return nil
	}
	e.bulk.inFlight = nil

	if msg.err != nil {
		metrics.BulkFetches.WithLabelValues("retry").Inc()
		e.log.Debug("bulk fetch failed, requeued", "id", msg.item.id, "kind", string(msg.item.kind), "error", msg.err)
		if e.store.Has(msg.item.id) {
			e.bulk.queue = append([]bulkItem{msg.item}, e.bulk.queue...)
		}
		return e.armBulk()
	}

	metrics.BulkFetches.WithLabelValues("ok").Inc()
	patch := CurrentPatch(msg.data)
	if msg.item.kind == ScanReference {
		patch = ReferencePatch(msg.data)
	}
	e.patch(msg.item.id, patch)
	if !e.bulk.active() && len(e.bulk.queue) == 0 {
		e.announce("Bulk %s scan complete", msg.item.kind)
		e.log.Info("bulk scan complete", "kind", string(msg.item.kind))
	}
	return nil
}
