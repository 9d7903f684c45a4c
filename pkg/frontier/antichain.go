package frontier

import (
	"fmt"
	"slices"
	"strings"
)

// Antichain is a set of mutually incomparable timestamps. Only minimal elements are retained.
type Antichain[T Timestamp[T]] struct {
	elements []T
}

// NewAntichain returns the empty antichain.
func NewAntichain[T Timestamp[T]]() *Antichain[T] {
	return &Antichain[T]{}
}

// From builds an antichain from the minimal elements of the given times.
func From[T Timestamp[T]](times ...T) *Antichain[T] {
	a := NewAntichain[T]()
	a.Extend(times...)
	return a
}

// Minimum returns the least frontier, containing only the zero timestamp.
func Minimum[T Timestamp[T]]() *Antichain[T] {
	var zero T
	return From(zero)
}

// Insert adds t unless some element is already less or equal to it, removing all elements that
// t is less or equal to. Returns true if the antichain changed.
func (a *Antichain[T]) Insert(t T) bool {
	for _, e := range a.elements {
		if e.LessEqual(t) {
			return false
		}
	}

	kept := a.elements[:0]
	for _, e := range a.elements {
		if !t.LessEqual(e) {
			kept = append(kept, e)
		}
	}
	a.elements = append(kept, t)
	return true
}

// Extend inserts all times and reports whether any insertion changed the antichain.
func (a *Antichain[T]) Extend(times ...T) bool {
	changed := false
	for _, t := range times {
		if a.Insert(t) {
			changed = true
		}
	}
	return changed
}

// Clear removes all elements.
func (a *Antichain[T]) Clear() { a.elements = a.elements[:0] }

// Set replaces the contents of the antichain with the elements of other.
func (a *Antichain[T]) Set(other *Antichain[T]) {
	a.elements = append(a.elements[:0], other.elements...)
}

// Elements returns the elements of the antichain. The slice must not be modified.
func (a *Antichain[T]) Elements() []T { return a.elements }

// Len returns the number of elements.
func (a *Antichain[T]) Len() int { return len(a.elements) }

// IsEmpty reports whether the antichain is empty, i.e., the frontier is complete.
func (a *Antichain[T]) IsEmpty() bool { return len(a.elements) == 0 }

// Clone returns a copy.
func (a *Antichain[T]) Clone() *Antichain[T] {
	return &Antichain[T]{elements: slices.Clone(a.elements)}
}

// LessEqual reports whether t is in advance of the frontier.
func (a *Antichain[T]) LessEqual(t T) bool {
	for _, e := range a.elements {
		if e.LessEqual(t) {
			return true
		}
	}
	return false
}

// LessThan reports whether some element is strictly less than t.
func (a *Antichain[T]) LessThan(t T) bool {
	for _, e := range a.elements {
		if e.LessEqual(t) && e != t {
			return true
		}
	}
	return false
}

// LessEqualFrontier is the frontier order: every element of other is in advance of a. The empty
// frontier is the greatest frontier.
func (a *Antichain[T]) LessEqualFrontier(other *Antichain[T]) bool {
	for _, o := range other.elements {
		if !a.LessEqual(o) {
			return false
		}
	}
	return true
}

// Equal reports whether both antichains contain the same elements.
func (a *Antichain[T]) Equal(other *Antichain[T]) bool {
	if len(a.elements) != len(other.elements) {
		return false
	}
	for _, e := range a.elements {
		if !slices.Contains(other.elements, e) {
			return false
		}
	}
	return true
}

// JoinWith replaces a with the least upper bound of a and other.
func (a *Antichain[T]) JoinWith(other *Antichain[T]) {
	a.Set(Join(a, other))
}

// MeetWith replaces a with the greatest lower bound of a and other.
func (a *Antichain[T]) MeetWith(other *Antichain[T]) {
	a.Extend(other.elements...)
}

// String renders the antichain as "{e1, e2}".
func (a *Antichain[T]) String() string {
	parts := make([]string, len(a.elements))
	for i, e := range a.elements {
		parts[i] = fmt.Sprintf("%v", e)
	}
	slices.Sort(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

// Join returns the least upper bound of two frontiers: the minimal pairwise joins of their
// elements. Joining with the empty frontier yields the empty frontier.
func Join[T Timestamp[T]](a, b *Antichain[T]) *Antichain[T] {
	result := NewAntichain[T]()
	for _, x := range a.elements {
		for _, y := range b.elements {
			result.Insert(x.Join(y))
		}
	}
	return result
}

// Meet returns the greatest lower bound of two frontiers: the minimal elements of their union.
func Meet[T Timestamp[T]](a, b *Antichain[T]) *Antichain[T] {
	result := a.Clone()
	result.Extend(b.elements...)
	return result
}

// AdvanceBy returns the least time in advance of the frontier that is indistinguishable from t
// for all times in advance of the frontier. The empty frontier leaves t unchanged.
func AdvanceBy[T Timestamp[T]](t T, frontier *Antichain[T]) T {
	if frontier.IsEmpty() {
		return t
	}
	result := t.Join(frontier.elements[0])
	for _, f := range frontier.elements[1:] {
		result = result.Meet(t.Join(f))
	}
	return result
}
