// Package frontier implements logical timestamps and the antichain algebra used to describe
// progress and compaction bounds of arranged traces.
//
// A frontier is an antichain: a set of mutually incomparable timestamps. A time t is "in
// advance of" a frontier if some element of the frontier is less or equal to t. The empty
// frontier is the top of the frontier order: no time is in advance of it, which is how a
// closed (complete) trace reports its upper bound.
//
// Timestamps must implement the Timestamp constraint. The zero value of a timestamp type is its
// minimum, so Minimum returns the least frontier, the identity of Join.
package frontier
