package frontier

import "fmt"

// Timestamp is a lattice element. The zero value must be the least element.
type Timestamp[T any] interface {
	comparable
	// LessEqual is the partial order.
	LessEqual(other T) bool
	// Join returns the least upper bound.
	Join(other T) T
	// Meet returns the greatest lower bound.
	Meet(other T) T
}

func isTimestamp[T Timestamp[T]]() {}

var (
	_ = isTimestamp[Time]
	_ = isTimestamp[Product]
)

// Time is a totally ordered logical timestamp.
type Time uint64

func (t Time) LessEqual(other Time) bool { return t <= other }

func (t Time) Join(other Time) Time { return max(t, other) }

func (t Time) Meet(other Time) Time { return min(t, other) }

// Product is a pair of times ordered by the product partial order, as used for nested scopes.
type Product struct {
	Outer, Inner Time
}

func (p Product) LessEqual(other Product) bool {
	return p.Outer <= other.Outer && p.Inner <= other.Inner
}

func (p Product) Join(other Product) Product {
	return Product{Outer: p.Outer.Join(other.Outer), Inner: p.Inner.Join(other.Inner)}
}

func (p Product) Meet(other Product) Product {
	return Product{Outer: p.Outer.Meet(other.Outer), Inner: p.Inner.Meet(other.Inner)}
}

// String returns a human readable form of the pair.
func (p Product) String() string { return fmt.Sprintf("(%d, %d)", p.Outer, p.Inner) }
