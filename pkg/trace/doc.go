// Package trace implements an in-memory arrangement engine: a spine of immutable, sorted batches
// of timestamped updates, written by a single Writer and read through any number of shared
// Agents.
//
// Every agent holds two frontiers. The advance frontier bounds the times at which the holder
// still needs correct accumulations (logical compaction). The distinguish frontier bounds the
// times at which the holder still needs batch boundaries (physical compaction). The spine
// compacts to the meet of the frontiers of all live agents. Batches are only compacted and merged
// when the physical frontier is exerted: the batches whose upper is not beyond the physical
// frontier have their times advanced by the logical frontier, and adjacent ones are merged. A
// logical compaction request therefore takes effect at the next physical merge.
//
// Merging follows a level discipline: a batch's level is the bit length of its update count and
// adjacent mergeable batches are merged while the older level does not exceed the newer one. The
// mergeable prefix of a spine therefore has strictly decreasing levels and holds a logarithmic
// number of batches.
//
// Example usage:
//
//	writer, agent := trace.NewArrangement[frontier.Time](trace.KeysVals, log)
//	_ = writer.Push(trace.Update[frontier.Time]{Key: key, Val: row, Time: 1, Diff: 1})
//	_ = writer.Seal(frontier.From[frontier.Time](2))
//	agent.AdvanceBy([]frontier.Time{2})
//	agent.DistinguishSince([]frontier.Time{2})
//	acc, err := agent.Lookup(key, 2)
package trace
