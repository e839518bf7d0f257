package engine

import (
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/metrics"
	"github.com/glabrego/mug-cli/internal/mug"
)

type feedState struct {
	gen      uint64
	active   bool
	inFlight bool
}

type feedTickMsg struct {
	gen uint64
}

type feedResultMsg struct {
	gen    uint64
	update *mug.Update
	err    error
}

// StartFeed begins polling /updates every FeedInterval. It is a no-op while
// the feed is already running.
func (e *Engine) StartFeed() tea.Cmd {
	if e.feed.active {
		return nil
	}
	e.feed = feedState{gen: e.handles.next(), active: true}
	e.log.Info("update feed started", "interval", e.opts.FeedInterval.String())
	return e.feedTick(e.feed.gen)
}

// StopFeed stops the feed. A poll still in flight is discarded on arrival.
func (e *Engine) StopFeed() {
	if !e.feed.active {
		return
	}
	e.feed = feedState{}
	e.log.Info("update feed stopped")
}

func (e *Engine) ToggleFeed() tea.Cmd {
	if e.feed.active {
		e.StopFeed()
		e.announce("Update feed off")
		return nil
	}
	e.announce("Update feed on")
	return e.StartFeed()
}

func (e *Engine) FeedActive() bool { return e.feed.active }

func (e *Engine) feedTick(gen uint64) tea.Cmd {
	return e.tick(e.opts.FeedInterval, func(time.Time) tea.Msg {
		return feedTickMsg{gen: gen}
	})
}

func (e *Engine) handleFeedTick(msg feedTickMsg) tea.Cmd {
	if !e.feed.active || msg.gen != e.feed.gen {
		return nil
	}
	next := e.feedTick(msg.gen)
	if e.feed.inFlight {
		return next
	}
	e.feed.inFlight = true
	gen := msg.gen
	timeout := e.opts.RequestTimeout
	backend := e.backend
	poll := func() tea.Msg {
		upd, err := call(timeout, backend.PollUpdate)
		return feedResultMsg{gen: gen, update: upd, err: err}
	}
	return tea.Batch(next, poll)
}

func (e *Engine) handleFeedResult(msg feedResultMsg) {
	if !e.feed.active || msg.gen != e.feed.gen {
		return
	}
	e.feed.inFlight = false

	if msg.err != nil {
		if mug.IsProtocol(msg.err) {
			metrics.FeedEvents.WithLabelValues("invalid").Inc()
			e.report("poll updates", 0, msg.err)
			return
		}
		e.log.Warn("update feed poll failed", "error", msg.err)
		return
	}
	if msg.update == nil || msg.update.Type == nil {
		return
	}
	e.applyUpdate(*msg.update)
}

func (e *Engine) applyUpdate(upd mug.Update) {
	var patch Patch
	switch *upd.Type {
	case mug.UpdateReference:
		patch = ReferencePatch(upd.Data.Reference)
	case mug.UpdateCurrent:
		patch = CurrentPatch(upd.Data.Current)
	case mug.UpdateDiff:
		patch = DiffPatch(upd.Data.Results, upd.Data.Status)
	default:
		metrics.FeedEvents.WithLabelValues("invalid").Inc()
		e.report("poll updates", upd.ID, &mug.ProtocolError{
			Op:  "poll updates",
			Err: fmt.Errorf("unknown update type %d", *upd.Type),
		})
		return
	}
	metrics.FeedEvents.WithLabelValues(strconv.Itoa(int(*upd.Type))).Inc()
	if !e.patch(upd.ID, patch) {
		e.log.Debug("update for unknown entity dropped", "id", upd.ID, "type", int(*upd.Type))
	}
}
