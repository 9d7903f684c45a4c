package worker

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/arrange/internal/testutils"
	"github.com/l7mp/arrange/pkg/arrangement"
	"github.com/l7mp/arrange/pkg/trace"
)

var _ = Describe("Source", func() {
	var (
		w      *Worker
		ctx    context.Context
		cancel context.CancelFunc
		done   chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		m := arrangement.NewManager(arrangement.Options{Logger: testutils.NewLogger(2)})
		w = New(m, Options{MaintenanceInterval: 10 * time.Millisecond, Logger: testutils.NewLogger(2)})
		done = make(chan error, 1)
		go func() { done <- w.Start(ctx) }()
	})

	AfterEach(func() {
		cancel()
		_, ok := testutils.TryReceive(done, timeout)
		Expect(ok).To(BeTrue())
	})

	newSource := func() *Source {
		src, err := NewSource(w, SourceConfig{
			Name:          "orders",
			BySelf:        true,
			Keys:          []trace.KeyProjection{{1}},
			Columns:       2,
			RowsPerStep:   4,
			CompactionLag: 2,
			Seed:          1,
		}, testutils.NewLogger(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(src.Bind(ctx)).To(Succeed())
		return src
	}

	It("should reject invalid collections", func() {
		_, err := NewSource(w, SourceConfig{Name: "c", Columns: 2, Keys: []trace.KeyProjection{{2}}},
			testutils.NewLogger(0))
		Expect(err).To(MatchError(trace.ErrColumnOutOfRange))

		_, err = NewSource(w, SourceConfig{Name: "c"}, testutils.NewLogger(0))
		Expect(err).To(HaveOccurred())
	})

	It("should feed and compact all arrangements of a collection", func() {
		src := newSource()
		for range 5 {
			Expect(src.Step(ctx)).To(Succeed())
		}
		Expect(src.Time()).To(Equal(arrangement.Timestamp(5)))
		Expect(src.Live()).To(Equal(10))

		Eventually(func() []string {
			stats, err := w.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(1))
			ret := []string{}
			for _, as := range stats[0].Arrangements {
				ret = append(ret, as.Upper+" "+as.Since)
			}
			return ret
		}, timeout, interval).Should(Equal([]string{"{5} {3}", "{5} {3}"}))

		stats, err := w.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats[0].Name).To(Equal("orders"))
		Expect(stats[0].Arrangements[0].Keys).To(BeNil())
		Expect(stats[0].Arrangements[1].Keys).To(Equal(trace.KeyProjection{1}))

		var self, keyed []trace.Accumulation
		Expect(w.Do(ctx, func(m *arrangement.Manager) {
			h, ok := m.GetBySelf("orders")
			Expect(ok).To(BeTrue())
			self, err = h.Collect(4)
			Expect(err).NotTo(HaveOccurred())

			h, ok = m.GetByKeys("orders", trace.KeyProjection{1})
			Expect(ok).To(BeTrue())
			keyed, err = h.Collect(4)
			Expect(err).NotTo(HaveOccurred())
		})).To(Succeed())

		Expect(self).To(HaveLen(10))
		Expect(keyed).To(HaveLen(10))
		for _, acc := range keyed {
			Expect(acc.Diff).To(Equal(int64(1)))
			Expect(acc.Key).To(HaveLen(1))
			Expect(acc.Val).To(HaveLen(2))
		}
	})

	It("should refuse to bind twice", func() {
		src := newSource()
		Expect(src.Bind(ctx)).To(MatchError(ErrAlreadyBound))

		Expect(src.Step(ctx)).To(Succeed())
		stats, err := w.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(HaveLen(1))
		Expect(stats[0].Arrangements).To(HaveLen(2))
		for _, as := range stats[0].Arrangements {
			Expect(as.Upper).To(Equal("{1}"))
		}
	})

	It("should keep stepping once the collection is retired", func() {
		src := newSource()
		Expect(src.Step(ctx)).To(Succeed())
		Expect(w.DelTrace(ctx, "orders")).To(Succeed())
		Expect(src.Step(ctx)).To(Succeed())

		stats, err := w.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(BeEmpty())
	})
})
