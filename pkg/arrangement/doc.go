// Package arrangement manages the arranged traces of named collections across dataflows.
//
// A TraceManager maps collection names to CollectionTraces. Each collection may be arranged "by
// self", where the key is the whole record, and by any number of key projections. Dataflow
// construction binds new arrangements and looks up existing ones to share them instead of
// rebuilding; a maintenance tick enables physical merging of batches across all collections; a
// frontier notification relaxes the logical compaction bound of one collection; and retirement
// drops the arrangements of one or all collections.
//
// Every bound arrangement may carry a DeleteCallback, released exactly once when the entry is
// replaced by a rebind or removed from the registry.
//
// A TraceManager has a single owner and is not safe for concurrent use. The handles it hands out
// are shared: holders may clone them and advance their own frontiers independently.
package arrangement
