package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/glabrego/mug-cli/internal/mug"
)

func TestPollerFailsThenSucceedsAppliesOnePatch(t *testing.T) {
	const failures = 4
	h := newHarness(t, Options{RetryInterval: 5 * time.Second})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com", Current: "cur"})
	attempts := 0
	h.backend.imageFn = func(op string, id int64) (string, error) {
		attempts++
		if attempts <= failures {
			if attempts%2 == 0 {
				return "", mug.ErrNotReady
			}
			return "", errUnavailable
		}
		return "ref-image", nil
	}
	version := h.engine.Store().Version()

	h.run(h.engine.StartPoller(7, ConcernReference))
	h.advance(time.Minute)

	calls := h.backend.callsTo("reference")
	if len(calls) != failures+1 {
		t.Fatalf("expected %d fetches, got %v", failures+1, calls)
	}
	for i, c := range calls {
		if want := time.Duration(i) * 5 * time.Second; c.at != want {
			t.Fatalf("fetch %d at %s, want %s (no backoff)", i, c.at, want)
		}
	}
	if got := h.engine.Store().Version() - version; got != 1 {
		t.Fatalf("expected exactly one patch, got %d", got)
	}
	if got := h.record(7); got.Reference != "ref-image" || got.Current != "cur" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if h.engine.ActivePollers() != 0 || len(h.clock.timers) != 0 {
		t.Fatal("expected poller finished with no timer pending")
	}
	if len(h.engine.Diagnostics()) != 0 {
		t.Fatal("expected retried failures not to be reported")
	}
}

func TestPollerUsesStoredImageForCurrent(t *testing.T) {
	h := newHarness(t, Options{})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})

	h.run(h.engine.StartPoller(7, ConcernCurrent))

	if got := h.record(7).Current; got != "stored-7" {
		t.Fatalf("expected stored image applied as current, got %q", got)
	}
}

func TestSecondPollerCancelsFirst(t *testing.T) {
	h := newHarness(t, Options{RetryInterval: 5 * time.Second})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	ready := false
	h.backend.imageFn = func(op string, id int64) (string, error) {
		if !ready {
			return "", mug.ErrNotReady
		}
		return "img", nil
	}
	version := h.engine.Store().Version()

	h.run(h.engine.StartPoller(7, ConcernReference))
	h.advance(2 * time.Second)
	h.run(h.engine.StartPoller(7, ConcernReference))
	ready = true
	h.advance(time.Minute)

	if got := h.engine.Store().Version() - version; got != 1 {
		t.Fatalf("expected exactly one patch, got %d", got)
	}
	// initial fetches of both pollers plus one retry of the second
	if got := len(h.backend.callsTo("reference")); got != 3 {
		t.Fatalf("expected 3 fetches, got %d", got)
	}
	if h.engine.ActivePollers() != 0 || len(h.clock.timers) != 0 {
		t.Fatal("expected no poller or timer left")
	}
}

func TestSupersededResponseIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	h.backend.imageFn = func(op string, id int64) (string, error) { return "old", nil }

	stale := h.engine.StartPoller(7, ConcernCurrent)
	fresh := h.engine.StartPoller(7, ConcernCurrent)

	h.run(stale)
	if got := h.record(7).Current; got != "" {
		t.Fatalf("expected stale response ignored, got %q", got)
	}
	if !h.engine.PollerActive(7, ConcernCurrent) {
		t.Fatal("expected newer poller still active")
	}

	h.backend.imageFn = func(op string, id int64) (string, error) { return "new", nil }
	h.run(fresh)
	if got := h.record(7).Current; got != "new" {
		t.Fatalf("expected fresh response applied, got %q", got)
	}
}

func TestPollersForDifferentConcernsAreIndependent(t *testing.T) {
	h := newHarness(t, Options{RetryInterval: time.Second})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	h.backend.imageFn = func(string, int64) (string, error) { return "", mug.ErrNotReady }

	h.run(h.engine.StartPoller(7, ConcernReference))
	h.run(h.engine.StartPoller(7, ConcernCurrent))

	if h.engine.ActivePollers() != 2 {
		t.Fatalf("expected two pollers, got %d", h.engine.ActivePollers())
	}
	if !h.engine.StopPoller(7, ConcernCurrent) {
		t.Fatal("expected StopPoller to find current poller")
	}
	if h.engine.StopPoller(7, ConcernCurrent) {
		t.Fatal("expected second StopPoller to be a no-op")
	}
	h.backend.imageFn = nil
	h.advance(time.Second)

	got := h.record(7)
	if got.Reference != "reference-7" || got.Current != "" {
		t.Fatalf("expected only reference applied, got %+v", got)
	}
}

func TestStopPollerClearsPendingTimer(t *testing.T) {
	h := newHarness(t, Options{RetryInterval: time.Second})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	h.backend.imageFn = func(string, int64) (string, error) { return "", errUnavailable }

	h.run(h.engine.StartPoller(7, ConcernReference))
	h.engine.StopPoller(7, ConcernReference)
	h.advance(time.Minute)

	if got := len(h.backend.callsTo("reference")); got != 1 {
		t.Fatalf("expected no retries after stop, got %d fetches", got)
	}
}

func TestPollerSelfCancelsWhenEntityDisappears(t *testing.T) {
	h := newHarness(t, Options{RetryInterval: time.Second})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	h.backend.imageFn = func(string, int64) (string, error) { return "", errUnavailable }

	h.run(h.engine.StartPoller(7, ConcernReference))
	h.engine.Store().Remove(7)
	h.advance(time.Minute)

	if h.engine.Store().Has(7) {
		t.Fatal("expected poller not to recreate the entity")
	}
	if h.engine.ActivePollers() != 0 {
		t.Fatal("expected poller to cancel itself")
	}
	if got := len(h.backend.callsTo("reference")); got != 1 {
		t.Fatalf("expected no fetch after entity removal, got %d", got)
	}
}

func TestPollerMaxAttemptsReportsAndStops(t *testing.T) {
	h := newHarness(t, Options{RetryInterval: time.Second, RetryMaxAttempts: 3})
	h.seed(mug.MonitoredURL{ID: 7, URL: "https://example.com"})
	h.backend.imageFn = func(string, int64) (string, error) { return "", errUnavailable }

	h.run(h.engine.StartPoller(7, ConcernCurrent))
	h.advance(time.Minute)

	if got := len(h.backend.callsTo("stored")); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	d, ok := h.engine.LastDiagnostic()
	if !ok || !errors.Is(d.Err, ErrRetriesExhausted) || d.ID != 7 {
		t.Fatalf("expected exhausted diagnostic, got %+v", d)
	}
	if h.engine.ActivePollers() != 0 {
		t.Fatal("expected poller cleared after exhaustion")
	}
}
