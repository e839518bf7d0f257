package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/metrics"
)

// ErrRetriesExhausted is reported when a poller hits RetryMaxAttempts.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

type pollTickMsg struct {
	key pollerKey
	gen uint64
}

type pollResultMsg struct {
	key  pollerKey
	gen  uint64
	data string
	err  error
}

// StartPoller fetches the image for (id, concern) now and keeps retrying
// every RetryInterval until it succeeds. A poller already running for the
// same key is cancelled first.
func (e *Engine) StartPoller(id int64, concern Concern) tea.Cmd {
	if !e.store.Has(id) {
		return nil
	}
	key := pollerKey{ID: id, Concern: concern}
	if e.handles.active(key) {
		e.log.Debug("replacing retry poller", "id", id, "concern", string(concern))
	}
	ph := e.handles.arm(key)
	return e.pollFetch(key, ph)
}

// StopPoller clears the handle so any pending tick or response is ignored.
func (e *Engine) StopPoller(id int64, concern Concern) bool {
	return e.handles.cancel(pollerKey{ID: id, Concern: concern})
}

func (e *Engine) pollFetch(key pollerKey, ph *pollerHandle) tea.Cmd {
	ph.inFlight = true
	ph.attempts++
	metrics.PollerAttempts.WithLabelValues(string(key.Concern)).Inc()

	fetch := e.backend.StoredImage
	if key.Concern == ConcernReference {
		fetch = e.backend.ReferenceImage
	}
	gen := ph.gen
	timeout := e.opts.RequestTimeout
	return func() tea.Msg {
		data, err := call(timeout, func(ctx context.Context) (string, error) {
			return fetch(ctx, key.ID)
		})
		return pollResultMsg{key: key, gen: gen, data: data, err: err}
	}
}

func (e *Engine) handlePollTick(msg pollTickMsg) tea.Cmd {
	ph, ok := e.handles.lookup(msg.key, msg.gen)
	if !ok {
		return nil
	}
	if !e.store.Has(msg.key.ID) {
		e.handles.cancel(msg.key)
		return nil
	}
	if ph.inFlight {
		return nil
	}
	return e.pollFetch(msg.key, ph)
}

func (e *Engine) handlePollResult(msg pollResultMsg) tea.Cmd {
	ph, ok := e.handles.lookup(msg.key, msg.gen)
	if !ok {
		return nil
	}
	ph.inFlight = false
	if !e.store.Has(msg.key.ID) {
		e.handles.cancel(msg.key)
		return nil
	}

	if msg.err == nil {
		e.handles.cancel(msg.key)
		patch := CurrentPatch(msg.data)
		if msg.key.Concern == ConcernReference {
			patch = ReferencePatch(msg.data)
		}
		e.patch(msg.key.ID, patch)
		e.announce("%s image ready for #%d", msg.key.Concern, msg.key.ID)
		return nil
	}

	e.log.Debug("retry poller attempt failed",
		"id", msg.key.ID, "concern", string(msg.key.Concern), "attempt", ph.attempts, "error", msg.err)
	if limit := e.opts.RetryMaxAttempts; limit > 0 && ph.attempts >= limit {
		e.handles.cancel(msg.key)
		e.report("poll "+string(msg.key.Concern), msg.key.ID,
			fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, ph.attempts, msg.err))
		return nil
	}

	key, gen := msg.key, msg.gen
	return e.tick(e.opts.RetryInterval, func(time.Time) tea.Msg {
		return pollTickMsg{key: key, gen: gen}
	})
}
