package trace

import (
	"cmp"
	"slices"

	"github.com/l7mp/arrange/pkg/frontier"
)

// Update is a change to an arranged collection: Diff copies of (Key, Val) at Time.
type Update[T frontier.Timestamp[T]] struct {
	Key, Val Row
	Time     T
	Diff     int64
}

// Accumulation is the multiplicity of a (Key, Val) pair at a queried time.
type Accumulation struct {
	Key, Val Row
	Diff     int64
}

// entry is an update together with the canonical encodings of its key and value.
type entry[T frontier.Timestamp[T]] struct {
	key, val string
	update   Update[T]
}

func newEntry[T frontier.Timestamp[T]](u Update[T]) (entry[T], error) {
	key, err := encodeRow(u.Key)
	if err != nil {
		return entry[T]{}, err
	}
	val, err := encodeRow(u.Val)
	if err != nil {
		return entry[T]{}, err
	}
	return entry[T]{key: key, val: val, update: u}, nil
}

func compareEntries[T frontier.Timestamp[T]](a, b entry[T]) int {
	if c := cmp.Compare(a.key, b.key); c != 0 {
		return c
	}
	return cmp.Compare(a.val, b.val)
}

// consolidate sorts entries by key and value and sums the diffs of entries with identical key,
// value and time. Entries whose diff sums to zero are dropped.
func consolidate[T frontier.Timestamp[T]](entries []entry[T]) []entry[T] {
	slices.SortStableFunc(entries, compareEntries[T])

	result := entries[:0]
	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && compareEntries(entries[start], entries[end]) == 0 {
			end++
		}

		// times are only partially ordered: keep the first-seen order within a group
		group := make([]entry[T], 0, end-start)
		index := make(map[T]int, end-start)
		for _, e := range entries[start:end] {
			if i, ok := index[e.update.Time]; ok {
				group[i].update.Diff += e.update.Diff
				continue
			}
			index[e.update.Time] = len(group)
			group = append(group, e)
		}
		for _, e := range group {
			if e.update.Diff != 0 {
				result = append(result, e)
			}
		}
		start = end
	}
	return result
}

// accumulate sums the diffs of all entries at times less or equal to t, per key and value.
func accumulate[T frontier.Timestamp[T]](entries []entry[T], t T) []Accumulation {
	type pair struct{ key, val string }
	sums := map[pair]*Accumulation{}
	order := []pair{}
	for _, e := range entries {
		if !e.update.Time.LessEqual(t) {
			continue
		}
		p := pair{key: e.key, val: e.val}
		acc, ok := sums[p]
		if !ok {
			acc = &Accumulation{Key: e.update.Key, Val: e.update.Val}
			sums[p] = acc
			order = append(order, p)
		}
		acc.Diff += e.update.Diff
	}

	slices.SortFunc(order, func(a, b pair) int {
		if c := cmp.Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.val, b.val)
	})

	result := []Accumulation{}
	for _, p := range order {
		if acc := sums[p]; acc.Diff != 0 {
			result = append(result, *acc)
		}
	}
	return result
}
