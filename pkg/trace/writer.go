package trace

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Writer appends batches to an arrangement. Writer is safe for concurrent use.
type Writer[T frontier.Timestamp[T]] struct {
	mu     sync.Mutex
	spine  *spine[T]
	buffer []entry[T]
	closed bool
}

// NewArrangement creates an empty arrangement of the given shape and returns its writer and a
// first agent. The agent starts with minimal advance and distinguish frontiers.
func NewArrangement[T frontier.Timestamp[T]](shape Shape, log logr.Logger) (*Writer[T], *Agent[T]) {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	s := newSpine[T](shape, log.WithName("spine"))

	s.mu.Lock()
	defer s.mu.Unlock()
	agent := s.register(frontier.Minimum[T](), frontier.Minimum[T]())
	return &Writer[T]{spine: s}, agent
}

// Push buffers updates for the next batch. Either all updates are buffered or none.
func (w *Writer[T]) Push(updates ...Update[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	entries := make([]entry[T], 0, len(updates))
	for _, u := range updates {
		if w.spine.shape == KeysOnly && len(u.Val) > 0 {
			return ErrShape
		}
		e, err := newEntry(u)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	w.buffer = append(w.buffer, entries...)
	return nil
}

// Seal emits the buffered updates as a batch from the current upper of the arrangement to the
// given upper. Sealing with the empty frontier closes the arrangement.
func (w *Writer[T]) Seal(upper *frontier.Antichain[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.spine.mu.Lock()
	defer w.spine.mu.Unlock()

	lower := w.spine.upper
	if !lower.LessEqualFrontier(upper) {
		return fmt.Errorf("sealing %s after %s: %w", upper, lower, ErrNotBeyond)
	}
	for _, e := range w.buffer {
		if !lower.LessEqual(e.update.Time) || upper.LessEqual(e.update.Time) {
			return fmt.Errorf("update at %v in batch [%s, %s): %w", e.update.Time, lower, upper,
				ErrUpdateNotInBatch)
		}
	}

	b := newBatch(w.buffer, lower, upper, frontier.Minimum[T]())
	w.spine.insert(b)
	w.buffer = nil
	w.closed = upper.IsEmpty()

	w.spine.log.V(4).Info("sealed batch", "lower", b.lower.String(), "upper", b.upper.String(),
		"size", b.Len(), "batches", len(w.spine.batches))
	return nil
}

// Close seals the remaining updates with the empty frontier.
func (w *Writer[T]) Close() error { return w.Seal(frontier.NewAntichain[T]()) }

// Upper returns the upper frontier of the arrangement.
func (w *Writer[T]) Upper() *frontier.Antichain[T] {
	w.spine.mu.Lock()
	defer w.spine.mu.Unlock()
	return w.spine.upper.Clone()
}
