package engine

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/mug"
)

type listResultMsg struct {
	seq  uint64
	urls []mug.MonitoredURL
	err  error
}

type addResultMsg struct {
	url string
	id  int64
	err error
}

type deleteResultMsg struct {
	id  int64
	err error
}

type scanResultMsg struct {
	id   int64
	data string
	err  error
}

type ackResultMsg struct {
	op  string
	id  int64
	err error
}

type diffResultMsg struct {
	id     int64
	result mug.DiffResult
	err    error
}

type imageResultMsg struct {
	id      int64
	concern Concern
	data    string
	err     error
}

// RefreshedMsg is emitted after a successful /list resync so the caller can
// persist the new snapshot.
type RefreshedMsg struct {
	URLs []mug.MonitoredURL
}

// Refresh reloads the full listing from the backend.
func (e *Engine) Refresh() tea.Cmd {
	e.refreshSeq++
	seq := e.refreshSeq
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		urls, err := call(timeout, backend.List)
		return listResultMsg{seq: seq, urls: urls, err: err}
	}
}

// handleList applies a listing. Local deletes and local changes made after
// the listing was requested win over what it reports, and a listing older
// than one already applied is ignored.
func (e *Engine) handleList(msg listResultMsg) tea.Cmd {
	if msg.err != nil {
		e.report("list urls", 0, msg.err)
		return nil
	}
	if msg.seq < e.appliedSeq {
		e.log.Debug("stale listing ignored", "seq", msg.seq, "applied", e.appliedSeq)
		return nil
	}
	e.appliedSeq = msg.seq

	listed := make(map[int64]bool, len(msg.urls))
	urls := make([]mug.MonitoredURL, 0, len(msg.urls))
	for _, u := range msg.urls {
		listed[u.ID] = true
		if e.tombstones[u.ID] {
			continue
		}
		urls = append(urls, u)
	}
	for id := range e.tombstones {
		if !listed[id] {
			delete(e.tombstones, id)
		}
	}

	dropped := e.store.Replace(urls, func(id int64) bool {
		return e.touched[id] >= msg.seq
	})
	for _, id := range dropped {
		e.forget(id)
	}
	for id, seq := range e.touched {
		if seq < msg.seq {
			delete(e.touched, id)
		}
	}
	e.announce("Loaded %d urls", e.store.Len())
	snapshot := e.store.List()
	return func() tea.Msg { return RefreshedMsg{URLs: snapshot} }
}

// Add validates rawURL and registers it with the backend. Validation errors
// are returned immediately and nothing is sent.
func (e *Engine) Add(rawURL string) (tea.Cmd, error) {
	normalized, err := mug.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		id, err := call(timeout, func(ctx context.Context) (int64, error) {
			return backend.AddURL(ctx, normalized)
		})
		return addResultMsg{url: normalized, id: id, err: err}
	}, nil
}

func (e *Engine) handleAdd(msg addResultMsg) tea.Cmd {
	if msg.err != nil {
		e.report("add url", 0, msg.err)
		return nil
	}
	delete(e.tombstones, msg.id)
	e.store.Append(mug.MonitoredURL{ID: msg.id, URL: msg.url})
	e.touch(msg.id)
	e.announce("Added #%d %s", msg.id, msg.url)
	e.log.Info("url added", "id", msg.id, "url", msg.url)
	if e.opts.AutoFetchReference {
		return e.StartPoller(msg.id, ConcernReference)
	}
	return nil
}

// Delete removes id locally right away and then tells the backend. A failed
// backend delete is reported but the record stays gone.
func (e *Engine) Delete(id int64) tea.Cmd {
	if !e.store.Remove(id) {
		return nil
	}
	e.forget(id)
	e.tombstones[id] = true
	e.announce("Deleted #%d", id)
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		_, err := call(timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, backend.DeleteURL(ctx, id)
		})
		return deleteResultMsg{id: id, err: err}
	}
}

func (e *Engine) handleDelete(msg deleteResultMsg) {
	if msg.err != nil {
		e.report("delete url", msg.id, msg.err)
		return
	}
	e.log.Info("url deleted", "id", msg.id)
}

// forget drops every piece of scheduling state held for id.
func (e *Engine) forget(id int64) {
	e.handles.cancelEntity(id)
	e.bulk.remove(id)
	delete(e.diffing, id)
	delete(e.touched, id)
}

// patch applies p to id and marks the record as changed locally.
func (e *Engine) patch(id int64, p Patch) bool {
	if !e.store.Upsert(id, p) {
		return false
	}
	e.touch(id)
	return true
}

func (e *Engine) touch(id int64) {
	e.touched[id] = e.refreshSeq
}

// Scan triggers a fresh capture of the current image.
func (e *Engine) Scan(id int64) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		data, err := call(timeout, func(ctx context.Context) (string, error) {
			return backend.TriggerScan(ctx, id)
		})
		return scanResultMsg{id: id, data: data, err: err}
	}
}

func (e *Engine) handleScan(msg scanResultMsg) tea.Cmd {
	if msg.err != nil {
		e.report("trigger scan", msg.id, msg.err)
		return nil
	}
	if !e.store.Has(msg.id) {
		return nil
	}
	if msg.data != "" {
		e.patch(msg.id, CurrentPatch(msg.data))
		e.announce("Scan of #%d complete", msg.id)
		return nil
	}
	e.announce("Scan of #%d started", msg.id)
	if e.opts.ScanMode == ScanPoll {
		return e.StartPoller(msg.id, ConcernCurrent)
	}
	return nil
}

func (e *Engine) InitReference(id int64) tea.Cmd {
	return e.ack("init reference", id, func(ctx context.Context, b Backend) error {
		return b.InitReference(ctx, id)
	})
}

func (e *Engine) Merge(id int64) tea.Cmd {
	return e.ack("merge", id, func(ctx context.Context, b Backend) error {
		return b.Merge(ctx, id)
	})
}

func (e *Engine) ack(op string, id int64, fn func(context.Context, Backend) error) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		_, err := call(timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx, backend)
		})
		return ackResultMsg{op: op, id: id, err: err}
	}
}

func (e *Engine) handleAck(msg ackResultMsg) {
	if msg.err != nil {
		e.report(msg.op, msg.id, msg.err)
		return
	}
	e.announce("%s #%d acknowledged", msg.op, msg.id)
}

// Diff requests a comparison and stores the returned output and status.
func (e *Engine) Diff(id int64) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	e.diffing[id]++
	backend := e.backend
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		res, err := call(timeout, func(ctx context.Context) (mug.DiffResult, error) {
			return backend.Diff(ctx, id)
		})
		return diffResultMsg{id: id, result: res, err: err}
	}
}

func (e *Engine) handleDiff(msg diffResultMsg) {
	if e.diffing[msg.id] > 1 {
		e.diffing[msg.id]--
	} else {
		delete(e.diffing, msg.id)
	}
	if msg.err != nil {
		e.report("diff", msg.id, msg.err)
		return
	}
	patch := Patch{DiffOutput: &msg.result.Output}
	if msg.result.Status != "" {
		patch.Status = &msg.result.Status
	}
	if e.patch(msg.id, patch) {
		e.announce("Diff of #%d updated", msg.id)
	}
}

func (e *Engine) GetReference(id int64) tea.Cmd {
	return e.fetchImage(id, ConcernReference)
}

func (e *Engine) GetCurrent(id int64) tea.Cmd {
	return e.fetchImage(id, ConcernCurrent)
}

func (e *Engine) fetchImage(id int64, concern Concern) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	fetch := e.backend.CurrentImage
	if concern == ConcernReference {
		fetch = e.backend.ReferenceImage
	}
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		data, err := call(timeout, func(ctx context.Context) (string, error) {
			return fetch(ctx, id)
		})
		return imageResultMsg{id: id, concern: concern, data: data, err: err}
	}
}

func (e *Engine) handleImage(msg imageResultMsg) {
	if msg.err != nil {
		e.report("get "+string(msg.concern), msg.id, msg.err)
		return
	}
	patch := CurrentPatch(msg.data)
	if msg.concern == ConcernReference {
		patch = ReferencePatch(msg.data)
	}
	if e.patch(msg.id, patch) {
		e.announce("Fetched %s image for #%d", msg.concern, msg.id)
	}
}
