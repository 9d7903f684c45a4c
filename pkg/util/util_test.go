package util

import (
	"testing"

	. "github.com/onsi/gomega"
)

type named string

func (n named) String() string { return "name:" + string(n) }

func TestMap(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Map(func(i int) string { return Stringify([]int{i}) }, []int{1, 2})).
		To(Equal([]string{"[1]", "[2]"}))
	g.Expect(Map(func(i int) int { return i }, nil)).To(BeEmpty())
}

func TestSortedKeys(t *testing.T) {
	g := NewWithT(t)
	g.Expect(SortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})).To(Equal([]string{"a", "b", "c"}))
	g.Expect(SortedKeys(map[int]bool{})).To(BeEmpty())
}

func TestStringify(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Stringify(map[string]any{"a": 1})).To(Equal(`{"a":1}`))
	g.Expect(Stringify(named("x"))).To(Equal("name:x"))
	// channels cannot be marshaled
	g.Expect(Stringify(make(chan int))).To(HavePrefix("(chan int)"))
}
