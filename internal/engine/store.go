package engine

import (
	"github.com/glabrego/mug-cli/internal/mug"
)

// Patch names the fields to overwrite on a record. Nil fields are left alone.
type Patch struct {
	Reference  *string
	Current    *string
	DiffOutput *string
	Status     *mug.Status
}

func (p Patch) empty() bool {
	return p.Reference == nil && p.Current == nil && p.DiffOutput == nil && p.Status == nil
}

func (p Patch) apply(rec *mug.MonitoredURL) {
	if p.Reference != nil {
		rec.Reference = *p.Reference
	}
	if p.Current != nil {
		rec.Current = *p.Current
	}
	if p.DiffOutput != nil {
		rec.DiffOutput = *p.DiffOutput
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
}

func ReferencePatch(v string) Patch { return Patch{Reference: &v} }

func CurrentPatch(v string) Patch { return Patch{Current: &v} }

func DiffPatch(output string, status mug.Status) Patch {
	return Patch{DiffOutput: &output, Status: &status}
}

// Store is the ordered, id-indexed collection of monitored URLs. It is not
// safe for concurrent use; the engine only touches it from the UI loop.
type Store struct {
	order   []int64
	records map[int64]*mug.MonitoredURL
	version uint64
}

func NewStore() *Store {
	return &Store{records: make(map[int64]*mug.MonitoredURL)}
}

// List returns a copy of all records in insertion order.
func (s *Store) List() []mug.MonitoredURL {
	out := make([]mug.MonitoredURL, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Get(id int64) (mug.MonitoredURL, bool) {
	rec, ok := s.records[id]
	if !ok {
		return mug.MonitoredURL{}, false
	}
	return *rec, true
}

func (s *Store) Has(id int64) bool {
	_, ok := s.records[id]
	return ok
}

// Version increases on every applied mutation.
func (s *Store) Version() uint64 { return s.version }

// Upsert merges patch into the record with the given id. It never creates a
// record and reports whether one was found.
func (s *Store) Upsert(id int64, patch Patch) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	if patch.empty() {
		return true
	}
	patch.apply(rec)
	s.version++
	return true
}

// Append adds rec at the end. An existing id keeps its position and has the
// non-empty fields of rec merged in.
func (s *Store) Append(rec mug.MonitoredURL) {
	if existing, ok := s.records[rec.ID]; ok {
		mergeNonEmpty(existing, rec)
		s.version++
		return
	}
	r := rec
	s.records[rec.ID] = &r
	s.order = append(s.order, rec.ID)
	s.version++
}

// Remove deletes the record if present. Removing an absent id is a no-op.
func (s *Store) Remove(id int64) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	return true
}

// Replace resynchronises the store with a full listing. The listing is
// authoritative: surviving records take its field values (including empty
// ones) and keep their position, new ones are appended in listing order, and
// records missing from the listing are dropped. Records for which pinned
// reports true are left exactly as they are, listed or not. The dropped ids
// are returned.
func (s *Store) Replace(urls []mug.MonitoredURL, pinned func(id int64) bool) []int64 {
	if pinned == nil {
		pinned = func(int64) bool { return false }
	}
	incoming := make(map[int64]mug.MonitoredURL, len(urls))
	for _, u := range urls {
		incoming[u.ID] = u
	}

	var dropped []int64
	kept := make([]int64, 0, len(urls))
	for _, id := range s.order {
		u, listed := incoming[id]
		delete(incoming, id)
		switch {
		case pinned(id):
		case !listed:
			dropped = append(dropped, id)
			delete(s.records, id)
			continue
		default:
			overwrite(s.records[id], u)
		}
		kept = append(kept, id)
	}
	for _, u := range urls {
		if _, pending := incoming[u.ID]; !pending {
			continue
		}
		r := u
		s.records[u.ID] = &r
		kept = append(kept, u.ID)
		delete(incoming, u.ID)
	}
	s.order = kept
	s.version++
	return dropped
}

func overwrite(dst *mug.MonitoredURL, src mug.MonitoredURL) {
	if src.URL != "" {
		dst.URL = src.URL
	}
	dst.Reference = src.Reference
	dst.Current = src.Current
	dst.DiffOutput = src.DiffOutput
	dst.Status = src.Status
}

func mergeNonEmpty(dst *mug.MonitoredURL, src mug.MonitoredURL) {
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if src.Reference != "" {
		dst.Reference = src.Reference
	}
	if src.Current != "" {
		dst.Current = src.Current
	}
	if src.DiffOutput != "" {
		dst.DiffOutput = src.DiffOutput
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
}
