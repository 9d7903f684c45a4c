package arrangement

import (
	"fmt"
	"iter"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/l7mp/arrange/pkg/frontier"
	"github.com/l7mp/arrange/pkg/trace"
	"github.com/l7mp/arrange/pkg/util"
)

// Options are the options of a trace manager.
type Options struct {
	// Logger is the base logger. Defaults to a discarding logger.
	Logger logr.Logger
	// Registerer receives the metrics of the manager. Metrics are not exported if nil.
	Registerer prometheus.Registerer
}

// TraceManager is a map from collection names to cached arrangements.
type TraceManager[H TraceHandle] struct {
	traces    map[string]*CollectionTraces[H]
	iterating int
	metrics   *metrics
	log       logr.Logger
}

// NewTraceManager creates an empty trace manager for the given handle type.
func NewTraceManager[H TraceHandle](opts Options) *TraceManager[H] {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	m := &TraceManager[H]{
		traces:  map[string]*CollectionTraces[H]{},
		metrics: newMetrics(),
		log:     logger.WithName("trace-manager"),
	}

	if opts.Registerer != nil {
		if err := m.metrics.register(opts.Registerer); err != nil {
			m.log.Error(err, "failed to register metrics")
		}
	}
	m.updateGauges()

	return m
}

// NewManager creates an empty trace manager for the arrangements of the trace engine.
func NewManager(opts Options) *Manager {
	return NewTraceManager[*trace.Agent[Timestamp]](opts)
}

// GetBySelf returns the arrangement of the collection by the whole record, should it exist.
func (m *TraceManager[H]) GetBySelf(name string) (H, bool) {
	var zero H
	c, ok := m.traces[name]
	if !ok || c.bySelf == nil {
		return zero, false
	}
	return c.bySelf.handle, true
}

// SetBySelf binds the arrangement of the collection by the whole record. A previous binding is
// replaced and its delete callback released.
func (m *TraceManager[H]) SetBySelf(name string, handle H, cb DeleteCallback) {
	m.mustNotIterate("SetBySelf")

	if m.collection(name).setBySelf(handle, cb) {
		m.metrics.callbacksReleased.Inc()
		m.log.V(1).Info("replaced by-self arrangement", "collection", name)
	} else {
		m.log.V(1).Info("bound by-self arrangement", "collection", name)
	}
	m.updateGauges()
}

// GetByKeys returns the arrangement of the collection by exactly the given key projection,
// should it exist.
func (m *TraceManager[H]) GetByKeys(name string, keys KeyProjection) (H, bool) {
	var zero H
	c, ok := m.traces[name]
	if !ok {
		return zero, false
	}
	b, ok := c.byKeys[keys.String()]
	if !ok {
		return zero, false
	}
	return b.handle, true
}

// SetByKeys binds the arrangement of the collection by the given key projection. A previous
// binding of the same projection is replaced and its delete callback released.
func (m *TraceManager[H]) SetByKeys(name string, keys KeyProjection, handle H, cb DeleteCallback) {
	m.mustNotIterate("SetByKeys")

	if m.collection(name).setByKeys(keys, handle, cb) {
		m.metrics.callbacksReleased.Inc()
		m.log.V(1).Info("replaced keyed arrangement", "collection", name, "keys", keys.String())
	} else {
		m.log.V(1).Info("bound keyed arrangement", "collection", name, "keys", keys.String())
	}
	m.updateGauges()
}

// AllKeyed returns a single-pass sequence over every keyed arrangement of the collection, in
// projection order. Returns false if the collection is unknown. The registry must not be
// modified while the sequence is being iterated.
func (m *TraceManager[H]) AllKeyed(name string) (iter.Seq2[KeyProjection, H], bool) {
	c, ok := m.traces[name]
	if !ok {
		return nil, false
	}

	used := false
	return func(yield func(KeyProjection, H) bool) {
		if used {
			return
		}
		used = true

		m.iterating++
		defer func() { m.iterating-- }()
		for keys, h := range c.keyed() {
			if !yield(keys, h) {
				return
			}
		}
	}, true
}

// DelTrace removes all arrangements of the collection, releasing their callbacks. Unknown names
// are ignored.
func (m *TraceManager[H]) DelTrace(name string) {
	m.mustNotIterate("DelTrace")

	c, ok := m.traces[name]
	if !ok {
		return
	}
	delete(m.traces, name)

	n := c.clear()
	m.metrics.callbacksReleased.Add(float64(n))
	m.updateGauges()
	m.log.V(1).Info("removed collection", "collection", name, "released-callbacks", n)
}

// DelAllTraces removes the arrangements of all collections, releasing their callbacks.
func (m *TraceManager[H]) DelAllTraces() {
	m.mustNotIterate("DelAllTraces")

	n := 0
	for _, name := range m.Names() {
		n += m.traces[name].clear()
	}
	m.traces = map[string]*CollectionTraces[H]{}

	m.metrics.callbacksReleased.Add(float64(n))
	m.updateGauges()
	m.log.V(1).Info("removed all collections", "released-callbacks", n)
}

// AllowCompaction enables logical compaction of the arrangements of the collection.
//
// Compaction may not occur immediately, but once this method is called the arrangements may not
// accumulate to the correct quantities for times not in advance of since. Unknown names are
// ignored.
func (m *TraceManager[H]) AllowCompaction(name string, since []Timestamp) {
	c, ok := m.traces[name]
	if !ok {
		m.log.V(2).Info("ignoring compaction request for unknown collection", "collection", name)
		return
	}

	c.MergeLogical(since)
	m.metrics.compactionRequests.Inc()
	m.log.V(2).Info("allowed compaction", "collection", name, "frontier", util.Stringify(since))
}

// Maintenance enables the physical merging of batches of every arrangement, so that at most a
// logarithmic number of batches need to be maintained. Batches introduced after the call are not
// merged until the next call.
func (m *TraceManager[H]) Maintenance() {
	for _, name := range m.Names() {
		upper := frontier.Minimum[Timestamp]()
		m.traces[name].MergePhysical(upper)
		m.log.V(2).Info("physical merge", "collection", name, "upper", upper.String())
	}
	m.metrics.maintenance.Inc()
}

// Names returns the names of the registered collections in lexicographic order.
func (m *TraceManager[H]) Names() []string { return util.SortedKeys(m.traces) }

// Len returns the number of registered collections.
func (m *TraceManager[H]) Len() int { return len(m.traces) }

// collection returns the traces of the collection, creating them if absent.
func (m *TraceManager[H]) collection(name string) *CollectionTraces[H] {
	c, ok := m.traces[name]
	if !ok {
		c = NewCollectionTraces[H]()
		m.traces[name] = c
	}
	return c
}

func (m *TraceManager[H]) mustNotIterate(op string) {
	if m.iterating > 0 {
		panic(fmt.Sprintf("arrangement: %s called while iterating keyed arrangements", op))
	}
}

func (m *TraceManager[H]) updateGauges() {
	self, keyed := 0, 0
	for _, c := range m.traces {
		if c.bySelf != nil {
			self++
		}
		keyed += len(c.byKeys)
	}
	m.metrics.collections.Set(float64(len(m.traces)))
	m.metrics.traces.WithLabelValues("self").Set(float64(self))
	m.metrics.traces.WithLabelValues("keyed").Set(float64(keyed))
}
