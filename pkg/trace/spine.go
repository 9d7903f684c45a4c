package trace

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Shape is the layout of an arrangement.
type Shape int

const (
	// KeysOnly arranges whole records by themselves; updates carry no value.
	KeysOnly Shape = iota
	// KeysVals arranges records by a derived key; the value is the record.
	KeysVals
)

// String returns the name of the shape.
func (s Shape) String() string {
	switch s {
	case KeysOnly:
		return "keys-only"
	case KeysVals:
		return "keys-vals"
	default:
		return "unknown"
	}
}

// spine is the shared state behind a writer and its agents.
type spine[T frontier.Timestamp[T]] struct {
	mu      sync.Mutex
	shape   Shape
	batches []*Batch[T]
	upper   *frontier.Antichain[T]
	// logical and physical are the meets of the advance and distinguish frontiers of all
	// live agents.
	logical, physical *frontier.Antichain[T]
	// pending is set when a compaction frontier moved since the last merge pass.
	pending bool
	agents  map[uint64]*Agent[T]
	nextID  uint64
	log     logr.Logger
}

func newSpine[T frontier.Timestamp[T]](shape Shape, log logr.Logger) *spine[T] {
	return &spine[T]{
		shape:    shape,
		upper:    frontier.Minimum[T](),
		logical:  frontier.Minimum[T](),
		physical: frontier.Minimum[T](),
		agents:   map[uint64]*Agent[T]{},
		log:      log,
	}
}

// register adds a new agent with the given frontiers. Must be called with the lock held.
func (s *spine[T]) register(advance, through *frontier.Antichain[T]) *Agent[T] {
	a := &Agent[T]{
		spine:   s,
		id:      s.nextID,
		advance: advance.Clone(),
		through: through.Clone(),
	}
	s.nextID++
	s.agents[a.id] = a
	return a
}

// recompute refreshes the compaction frontiers from the live agents. If exert is set and either
// frontier moved since the last merge pass, batches are merged. Must be called with the lock held.
func (s *spine[T]) recompute(exert bool) {
	logical, physical := frontier.NewAntichain[T](), frontier.NewAntichain[T]()
	for _, a := range s.agents {
		logical.MeetWith(a.advance)
		physical.MeetWith(a.through)
	}

	// compaction frontiers never regress
	if s.logical.LessEqualFrontier(logical) && !s.logical.Equal(logical) {
		s.logical = logical
		s.pending = true
	}
	if s.physical.LessEqualFrontier(physical) && !s.physical.Equal(physical) {
		s.physical = physical
		s.pending = true
	}

	if exert && s.pending {
		s.exert()
		s.pending = false
	}
}

// exert compacts the batches of the mergeable prefix of the spine to the logical frontier and
// merges adjacent batches while the older batch's level does not exceed the newer one. Empty
// batches are always absorbed by their predecessor. Must be called with the lock held.
func (s *spine[T]) exert() {
	n := 0
	for n < len(s.batches) && s.batches[n].upper.LessEqualFrontier(s.physical) {
		n++
	}

	merged := make([]*Batch[T], 0, len(s.batches))
	for _, b := range s.batches[:n] {
		if !b.since.Equal(s.logical) {
			b = compactBatch(b, s.logical)
		}
		merged = append(merged, b)
		for len(merged) >= 2 {
			older, newer := merged[len(merged)-2], merged[len(merged)-1]
			if older.level > newer.level && newer.Len() > 0 {
				break
			}
			m := mergeBatches(older, newer, s.logical)
			s.log.V(4).Info("merged batches", "lower", older.lower.String(), "upper", newer.upper.String(),
				"since", s.logical.String(), "sizes", []int{older.Len(), newer.Len()}, "merged-size", m.Len())
			merged = append(merged[:len(merged)-2], m)
		}
	}
	s.batches = append(merged, s.batches[n:]...)
}

// insert appends a sealed batch. Must be called with the lock held.
func (s *spine[T]) insert(b *Batch[T]) {
	s.batches = append(s.batches, b)
	s.upper = b.upper.Clone()
}
