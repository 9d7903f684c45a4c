package arrangement

import (
	"iter"
	"reflect"

	"github.com/l7mp/arrange/pkg/util"
)

// binding is an arrangement handle and the cleanup owed when it is retired.
type binding[H TraceHandle] struct {
	handle   H
	callback DeleteCallback
}

// retire releases the handle, if it holds resources, and then the delete callback. Reports
// whether a callback was released.
func (b *binding[H]) retire() bool {
	if r, ok := any(b.handle).(releaser); ok {
		r.Release()
	}
	return b.releaseCallback()
}

// replace retires the binding in favor of next. The handle is kept alive if it is rebound.
func (b *binding[H]) replace(next H) bool {
	if !sameHandle(b.handle, next) {
		if r, ok := any(b.handle).(releaser); ok {
			r.Release()
		}
	}
	return b.releaseCallback()
}

func (b *binding[H]) releaseCallback() bool {
	if b.callback == nil {
		return false
	}
	b.callback.Release()
	b.callback = nil
	return true
}

type keyedBinding[H TraceHandle] struct {
	keys KeyProjection
	binding[H]
}

// CollectionTraces holds the arrangements of a single collection.
type CollectionTraces[H TraceHandle] struct {
	// bySelf is the collection arranged by the whole record.
	bySelf *binding[H]
	// byKeys is the collection arranged by key projections, indexed by the rendered projection.
	byKeys map[string]*keyedBinding[H]
}

// NewCollectionTraces returns an empty collection.
func NewCollectionTraces[H TraceHandle]() *CollectionTraces[H] {
	return &CollectionTraces[H]{byKeys: map[string]*keyedBinding[H]{}}
}

// MergePhysical joins the upper frontier of every arrangement of the collection into the
// accumulator and allows each to physically merge batches up to the joined frontier.
func (c *CollectionTraces[H]) MergePhysical(upper *Frontier) {
	for _, b := range c.bindings() {
		b.handle.ReadUpper(upper)
		b.handle.DistinguishSince(upper.Elements())
	}
}

// MergeLogical allows every arrangement of the collection to compact times not in advance of the
// frontier. Compaction happens at the next physical merge.
func (c *CollectionTraces[H]) MergeLogical(frontier []Timestamp) {
	for _, b := range c.bindings() {
		b.handle.AdvanceBy(frontier)
	}
}

// Len returns the number of arrangements of the collection.
func (c *CollectionTraces[H]) Len() int {
	n := len(c.byKeys)
	if c.bySelf != nil {
		n++
	}
	return n
}

// bindings returns the by-self binding, if any, followed by the keyed bindings in projection
// order.
func (c *CollectionTraces[H]) bindings() []*binding[H] {
	ret := make([]*binding[H], 0, c.Len())
	if c.bySelf != nil {
		ret = append(ret, c.bySelf)
	}
	for _, k := range util.SortedKeys(c.byKeys) {
		ret = append(ret, &c.byKeys[k].binding)
	}
	return ret
}

func (c *CollectionTraces[H]) keyed() iter.Seq2[KeyProjection, H] {
	return func(yield func(KeyProjection, H) bool) {
		for _, k := range util.SortedKeys(c.byKeys) {
			b, ok := c.byKeys[k]
			if !ok {
				continue
			}
			if !yield(b.keys.Clone(), b.handle) {
				return
			}
		}
	}
}

// setBySelf replaces the by-self binding and reports whether a callback was released.
func (c *CollectionTraces[H]) setBySelf(handle H, cb DeleteCallback) bool {
	released := false
	if c.bySelf != nil {
		released = c.bySelf.replace(handle)
	}
	c.bySelf = &binding[H]{handle: handle, callback: cb}
	return released
}

// setByKeys replaces the binding of a key projection and reports whether a callback was
// released.
func (c *CollectionTraces[H]) setByKeys(keys KeyProjection, handle H, cb DeleteCallback) bool {
	released := false
	k := keys.String()
	if old, ok := c.byKeys[k]; ok {
		released = old.replace(handle)
	}
	c.byKeys[k] = &keyedBinding[H]{keys: keys.Clone(), binding: binding[H]{handle: handle, callback: cb}}
	return released
}

// clear retires every binding and returns the number of released callbacks.
func (c *CollectionTraces[H]) clear() int {
	n := 0
	for _, b := range c.bindings() {
		if b.retire() {
			n++
		}
	}
	c.bySelf = nil
	c.byKeys = map[string]*keyedBinding[H]{}
	return n
}

func sameHandle[H any](a, b H) bool {
	t := reflect.TypeOf(a)
	if t == nil || t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return any(a) == any(b)
}
