package engine

// Concern identifies which field family a retry poller is responsible for.
type Concern string

const (
	ConcernReference Concern = "reference"
	ConcernCurrent   Concern = "current"
)

type pollerKey struct {
	ID      int64
	Concern Concern
}

type pollerHandle struct {
	gen      uint64
	attempts int
	inFlight bool
}

// handles owns every piece of scheduling state. A timer or response is only
// honoured while the generation it carries is still registered; cancelling
// is removing or replacing that generation.
type handles struct {
	seq     uint64
	pollers map[pollerKey]*pollerHandle
}

func newHandles() *handles {
	return &handles{pollers: make(map[pollerKey]*pollerHandle)}
}

func (h *handles) next() uint64 {
	h.seq++
	return h.seq
}

// arm registers a fresh poller for key, cancelling any outstanding one.
func (h *handles) arm(key pollerKey) *pollerHandle {
	ph := &pollerHandle{gen: h.next()}
	h.pollers[key] = ph
	return ph
}

func (h *handles) lookup(key pollerKey, gen uint64) (*pollerHandle, bool) {
	ph, ok := h.pollers[key]
	if !ok || ph.gen != gen {
		return nil, false
	}
	return ph, true
}

func (h *handles) active(key pollerKey) bool {
	_, ok := h.pollers[key]
	return ok
}

func (h *handles) cancel(key pollerKey) bool {
	if _, ok := h.pollers[key]; !ok {
		return false
	}
	delete(h.pollers, key)
	return true
}

func (h *handles) cancelEntity(id int64) {
	for key := range h.pollers {
		if key.ID == id {
			delete(h.pollers, key)
		}
	}
}

func (h *handles) count() int { return len(h.pollers) }
