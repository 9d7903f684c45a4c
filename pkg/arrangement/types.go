package arrangement

import (
	"sync"

	"github.com/l7mp/arrange/pkg/frontier"
	"github.com/l7mp/arrange/pkg/trace"
)

// Timestamp is the logical time of arranged updates.
type Timestamp = frontier.Time

// Frontier is an antichain of timestamps.
type Frontier = frontier.Antichain[Timestamp]

// KeyProjection identifies the columns an arrangement is keyed by.
type KeyProjection = trace.KeyProjection

// Diff is the multiplicity of an update.
type Diff = int64

// TraceHandle is the capability the manager needs from an arrangement handle.
type TraceHandle interface {
	// ReadUpper joins the upper frontier of the arrangement into the accumulator.
	ReadUpper(upper *Frontier)
	// DistinguishSince allows physical merging of batches not in advance of the frontier.
	DistinguishSince(frontier []Timestamp)
	// AdvanceBy allows logical compaction of times not in advance of the frontier.
	AdvanceBy(frontier []Timestamp)
}

// releaser is implemented by handles that hold resources of their own.
type releaser interface {
	Release()
}

var _ TraceHandle = (*trace.Agent[Timestamp])(nil)

// KeysOnlyHandle is an arrangement of whole records.
type KeysOnlyHandle = *trace.Agent[Timestamp]

// KeysValsHandle is an arrangement of records by a key projection.
type KeysValsHandle = *trace.Agent[Timestamp]

// Manager is the trace manager of the arrangement engine.
type Manager = TraceManager[*trace.Agent[Timestamp]]

// DeleteCallback is a cleanup owed to external state, released when the owning arrangement is
// retired.
type DeleteCallback interface {
	Release()
}

// ReleaseFunc adapts a function to a DeleteCallback.
type ReleaseFunc func()

// Release calls f.
func (f ReleaseFunc) Release() { f() }

// Once wraps a callback so that it is released at most once, however many times Release is
// called.
func Once(cb DeleteCallback) DeleteCallback {
	if cb == nil {
		return nil
	}
	return &onceCallback{cb: cb}
}

type onceCallback struct {
	once sync.Once
	cb   DeleteCallback
}

func (o *onceCallback) Release() { o.once.Do(o.cb.Release) }
