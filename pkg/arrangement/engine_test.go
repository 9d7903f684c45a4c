package arrangement

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/arrange/internal/testutils"
	"github.com/l7mp/arrange/pkg/frontier"
	"github.com/l7mp/arrange/pkg/trace"
)

// arrangeOrders arranges the test orders, by self if keys is nil, in two batches at times 1 and
// 2, and returns the agent.
func arrangeOrders(keys KeyProjection) *trace.Agent[Timestamp] {
	shape := trace.KeysOnly
	if keys != nil {
		shape = trace.KeysVals
	}
	writer, agent := trace.NewArrangement[Timestamp](shape, testutils.NewLogger(0))

	for i, r := range testutils.OrderRows {
		row := trace.Row(r)
		t := Timestamp(1 + i/2)
		u := trace.Update[Timestamp]{Key: row, Time: t, Diff: 1}
		if keys != nil {
			key, err := row.Project(keys)
			Expect(err).NotTo(HaveOccurred())
			u = trace.Update[Timestamp]{Key: key, Val: row, Time: t, Diff: 1}
		}
		Expect(writer.Push(u)).To(Succeed())
		if i%2 == 1 {
			Expect(writer.Seal(frontier.From(t + 1))).To(Succeed())
		}
	}
	return agent
}

var _ = Describe("Manager", func() {
	var (
		m          *Manager
		self, byID *trace.Agent[Timestamp]
	)

	BeforeEach(func() {
		m = NewManager(Options{Logger: testutils.NewLogger(2)})
		self = arrangeOrders(nil)
		byID = arrangeOrders(KeyProjection{1})
		m.SetBySelf("orders", self, nil)
		m.SetByKeys("orders", KeyProjection{1}, byID, nil)
	})

	It("should defer compaction until maintenance", func() {
		before := self.Batches()
		Expect(before).To(HaveLen(2))

		m.AllowCompaction("orders", []Timestamp{5})

		h, ok := m.GetBySelf("orders")
		Expect(ok).To(BeTrue())
		Expect(h.Batches()).To(Equal(before))
		Expect(h.Upper().Elements()).To(ConsistOf(Timestamp(3)))
		Expect(h.Since().Elements()).To(ConsistOf(Timestamp(5)))

		m.Maintenance()

		for _, a := range []*trace.Agent[Timestamp]{self, byID} {
			Expect(a.BatchCount()).To(Equal(1))
			d := a.Batches()[0]
			Expect(d.Since.Elements()).To(ConsistOf(Timestamp(5)))
			Expect(d.Upper.Elements()).To(ConsistOf(Timestamp(3)))
			Expect(a.Through().Elements()).To(ConsistOf(Timestamp(3)))

			_, err := a.Collect(2)
			Expect(err).To(MatchError(trace.ErrNotInAdvance))

			acc, err := a.Collect(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(acc).To(HaveLen(len(testutils.OrderRows)))
		}
	})

	It("should serve lookups through shared handles", func() {
		h, ok := m.GetByKeys("orders", KeyProjection{1})
		Expect(ok).To(BeTrue())
		reader := h.Clone()
		defer reader.Release()

		acc, err := reader.Lookup(trace.Row{"alice"}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(acc).To(HaveLen(2))

		// the reader holds back compaction of the shared arrangement
		m.AllowCompaction("orders", []Timestamp{5})
		m.Maintenance()
		Expect(byID.Batches()[0].Since.Elements()).To(ConsistOf(Timestamp(0)))

		acc, err = reader.Lookup(trace.Row{"alice"}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(acc).To(HaveLen(1))

		// retiring the collection leaves the reader's handle usable
		m.DelTrace("orders")
		Expect(byID.Released()).To(BeTrue())
		acc, err = reader.Lookup(trace.Row{"carol"}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(acc).To(HaveLen(1))
	})

	It("should iterate keyed handles for bulk frontier operations", func() {
		seq, ok := m.AllKeyed("orders")
		Expect(ok).To(BeTrue())
		for keys, h := range seq {
			Expect(keys).To(Equal(KeyProjection{1}))
			h.AdvanceBy([]Timestamp{2})
		}
		Expect(byID.Since().Elements()).To(ConsistOf(Timestamp(2)))
		Expect(self.Since().Elements()).To(ConsistOf(Timestamp(0)))
	})
})
