package trace

import (
	"fmt"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Agent is a shareable handle to an arrangement. Each agent holds its own advance and distinguish
// frontiers; the arrangement compacts to the meet over all live agents. Agents are safe for
// concurrent use.
type Agent[T frontier.Timestamp[T]] struct {
	spine    *spine[T]
	id       uint64
	advance  *frontier.Antichain[T]
	through  *frontier.Antichain[T]
	released bool
}

// Clone returns a new agent holding the same frontiers as a. The clone of a released agent is
// released: the arrangement may already be compacted beyond the frontiers it held.
func (a *Agent[T]) Clone() *Agent[T] {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if a.released {
		return &Agent[T]{
			spine:    a.spine,
			advance:  a.advance.Clone(),
			through:  a.through.Clone(),
			released: true,
		}
	}
	return a.spine.register(a.advance, a.through)
}

// Release drops the frontier holds of the agent. Release is idempotent.
func (a *Agent[T]) Release() {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if a.released {
		return
	}
	a.released = true
	delete(a.spine.agents, a.id)
	a.spine.recompute(true)
}

// Released reports whether the agent has been released.
func (a *Agent[T]) Released() bool {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	return a.released
}

// Shape returns the layout of the arrangement.
func (a *Agent[T]) Shape() Shape { return a.spine.shape }

// ReadUpper joins the upper frontier of the arrangement into the accumulator.
func (a *Agent[T]) ReadUpper(upper *frontier.Antichain[T]) {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	upper.JoinWith(a.spine.upper)
}

// DistinguishSince allows the arrangement to merge batches at times not in advance of the
// frontier. Requests behind the current distinguish frontier of the agent are ignored.
func (a *Agent[T]) DistinguishSince(f []T) {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if a.released {
		return
	}
	a.through = frontier.Join(a.through, frontier.From(f...))
	a.spine.recompute(true)
}

// AdvanceBy allows the arrangement to forget the distinction between times not in advance of the
// frontier. Compaction takes effect at the next physical merge. Requests behind the current
// advance frontier of the agent are ignored.
func (a *Agent[T]) AdvanceBy(f []T) {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if a.released {
		return
	}
	a.advance = frontier.Join(a.advance, frontier.From(f...))
	a.spine.recompute(false)
}

// Upper returns the upper frontier of the arrangement.
func (a *Agent[T]) Upper() *frontier.Antichain[T] {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	return a.spine.upper.Clone()
}

// Since returns the advance frontier of the agent.
func (a *Agent[T]) Since() *frontier.Antichain[T] {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	return a.advance.Clone()
}

// Through returns the distinguish frontier of the agent.
func (a *Agent[T]) Through() *frontier.Antichain[T] {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	return a.through.Clone()
}

// BatchCount returns the number of batches held by the arrangement.
func (a *Agent[T]) BatchCount() int {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	return len(a.spine.batches)
}

// Len returns the number of updates held by the arrangement.
func (a *Agent[T]) Len() int {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	n := 0
	for _, b := range a.spine.batches {
		n += b.Len()
	}
	return n
}

// Batches describes the batches of the arrangement, oldest first.
func (a *Agent[T]) Batches() []Description[T] {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	ret := make([]Description[T], len(a.spine.batches))
	for i, b := range a.spine.batches {
		ret[i] = b.Describe()
	}
	return ret
}

// Collect returns the accumulated contents of the arrangement at time t.
func (a *Agent[T]) Collect(t T) ([]Accumulation, error) {
	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if err := a.readable(t); err != nil {
		return nil, err
	}

	var entries []entry[T]
	for _, b := range a.spine.batches {
		entries = append(entries, b.entries...)
	}
	return accumulate(entries, t), nil
}

// Lookup returns the accumulated values stored under key at time t.
func (a *Agent[T]) Lookup(key Row, t T) ([]Accumulation, error) {
	enc, err := encodeRow(key)
	if err != nil {
		return nil, err
	}

	a.spine.mu.Lock()
	defer a.spine.mu.Unlock()
	if err := a.readable(t); err != nil {
		return nil, err
	}

	var entries []entry[T]
	for _, b := range a.spine.batches {
		entries = append(entries, b.seek(enc)...)
	}
	return accumulate(entries, t), nil
}

// readable checks that accumulations at t are still correct for this agent. Must be called with
// the lock held.
func (a *Agent[T]) readable(t T) error {
	if a.released {
		return ErrReleased
	}
	if !a.advance.LessEqual(t) {
		return fmt.Errorf("read at %v with advance frontier %s: %w", t, a.advance, ErrNotInAdvance)
	}
	return nil
}
