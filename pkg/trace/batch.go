package trace

import (
	"math/bits"
	"sort"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Batch is an immutable, consolidated set of updates with times in [Lower, Upper). Times have
// been advanced by the Since frontier.
type Batch[T frontier.Timestamp[T]] struct {
	entries             []entry[T]
	lower, upper, since *frontier.Antichain[T]
	level               int
}

// Description summarizes a batch.
type Description[T frontier.Timestamp[T]] struct {
	Lower, Upper, Since *frontier.Antichain[T]
	Len, Level          int
}

func newBatch[T frontier.Timestamp[T]](entries []entry[T], lower, upper, since *frontier.Antichain[T]) *Batch[T] {
	entries = consolidate(entries)
	return &Batch[T]{
		entries: entries,
		lower:   lower.Clone(),
		upper:   upper.Clone(),
		since:   since.Clone(),
		level:   bits.Len(uint(len(entries))),
	}
}

// mergeBatches merges two adjacent batches, advancing all times by the logical frontier.
func mergeBatches[T frontier.Timestamp[T]](older, newer *Batch[T], logical *frontier.Antichain[T]) *Batch[T] {
	entries := make([]entry[T], 0, len(older.entries)+len(newer.entries))
	for _, b := range []*Batch[T]{older, newer} {
		for _, e := range b.entries {
			e.update.Time = frontier.AdvanceBy(e.update.Time, logical)
			entries = append(entries, e)
		}
	}
	return newBatch(entries, older.lower, newer.upper, logical)
}

// compactBatch advances all times of the batch by the logical frontier.
func compactBatch[T frontier.Timestamp[T]](b *Batch[T], logical *frontier.Antichain[T]) *Batch[T] {
	entries := make([]entry[T], 0, len(b.entries))
	for _, e := range b.entries {
		e.update.Time = frontier.AdvanceBy(e.update.Time, logical)
		entries = append(entries, e)
	}
	return newBatch(entries, b.lower, b.upper, logical)
}

// Len returns the number of updates in the batch.
func (b *Batch[T]) Len() int { return len(b.entries) }

// Describe returns the bounds and size of the batch.
func (b *Batch[T]) Describe() Description[T] {
	return Description[T]{
		Lower: b.lower.Clone(),
		Upper: b.upper.Clone(),
		Since: b.since.Clone(),
		Len:   len(b.entries),
		Level: b.level,
	}
}

// Updates returns a copy of the updates in the batch.
func (b *Batch[T]) Updates() []Update[T] {
	ret := make([]Update[T], len(b.entries))
	for i := range b.entries {
		ret[i] = b.entries[i].update
	}
	return ret
}

// seek returns the entries with the given encoded key.
func (b *Batch[T]) seek(key string) []entry[T] {
	lo := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].key >= key })
	hi := lo
	for hi < len(b.entries) && b.entries[hi].key == key {
		hi++
	}
	return b.entries[lo:hi]
}
