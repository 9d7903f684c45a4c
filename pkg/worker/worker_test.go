package worker

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/arrange/internal/testutils"
	"github.com/l7mp/arrange/pkg/arrangement"
	"github.com/l7mp/arrange/pkg/frontier"
	"github.com/l7mp/arrange/pkg/trace"
)

func TestWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Worker")
}

const (
	timeout  = 2 * time.Second
	interval = 20 * time.Millisecond
)

var _ = Describe("Worker", func() {
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

	It("should run requests on the owner goroutine", func() {
		_, agent := trace.NewArrangement[arrangement.Timestamp](trace.KeysOnly, testutils.NewLogger(0))
		Expect(w.Do(ctx, func(m *arrangement.Manager) { m.SetBySelf("c", agent, nil) })).To(Succeed())

		var found bool
		Expect(w.Do(ctx, func(m *arrangement.Manager) { _, found = m.GetBySelf("c") })).To(Succeed())
		Expect(found).To(BeTrue())

		Expect(w.DelTrace(ctx, "c")).To(Succeed())
		Expect(w.Do(ctx, func(m *arrangement.Manager) { _, found = m.GetBySelf("c") })).To(Succeed())
		Expect(found).To(BeFalse())
	})

	It("should refuse to start twice", func() {
		// the owner loop is running once a request completes
		Expect(w.Do(ctx, func(*arrangement.Manager) {})).To(Succeed())
		Expect(w.Start(ctx)).To(MatchError(ErrAlreadyStarted))
		Expect(w.Do(ctx, func(*arrangement.Manager) {})).To(Succeed())
	})

	It("should merge batches on the maintenance tick", func() {
		writer, agent := trace.NewArrangement[arrangement.Timestamp](trace.KeysOnly, testutils.NewLogger(0))
		Expect(w.Do(ctx, func(m *arrangement.Manager) { m.SetBySelf("c", agent.Clone(), nil) })).To(Succeed())

		for t := arrangement.Timestamp(0); t < 8; t++ {
			Expect(writer.Push(trace.Update[arrangement.Timestamp]{Key: trace.Row{"x"}, Time: t, Diff: 1})).
				To(Succeed())
			Expect(writer.Seal(frontier.From(t + 1))).To(Succeed())
		}
		// the test's own agent must not hold back compaction
		agent.Release()

		Expect(w.AllowCompaction(ctx, "c", []arrangement.Timestamp{8})).To(Succeed())
		Eventually(func() int {
			stats, err := w.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(1))
			return stats[0].Arrangements[0].Updates
		}, timeout, interval).Should(Equal(1))

		stats, err := w.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats[0].Name).To(Equal("c"))
		Expect(stats[0].Arrangements[0].Keys).To(BeNil())
		Expect(stats[0].Arrangements[0].Batches).To(Equal(1))
		Expect(stats[0].Arrangements[0].Since).To(Equal("{8}"))
	})

	It("should retire all arrangements on shutdown", func() {
		cb := &testutils.Counter{}
		_, agent := trace.NewArrangement[arrangement.Timestamp](trace.KeysVals, testutils.NewLogger(0))
		Expect(w.Do(ctx, func(m *arrangement.Manager) {
			m.SetByKeys("c", trace.KeyProjection{0}, agent, cb)
		})).To(Succeed())

		cancel()
		_, ok := testutils.TryReceive(w.Stopped(), timeout)
		Expect(ok).To(BeTrue())
		Eventually(cb.Count, timeout, interval).Should(Equal(1))
		Expect(agent.Released()).To(BeTrue())

		err := w.Maintenance(context.Background())
		Expect(err).To(MatchError(ErrStopped))
	})

	It("should honor the caller's context", func() {
		reqCtx, reqCancel := context.WithCancel(context.Background())
		reqCancel()
		stuck := make(chan struct{})
		go func() {
			defer close(stuck)
			// keep the owner busy so that the request cannot be accepted
			_ = w.Do(ctx, func(*arrangement.Manager) { time.Sleep(200 * time.Millisecond) })
		}()
		time.Sleep(50 * time.Millisecond)
		err := w.Do(reqCtx, func(*arrangement.Manager) {})
		Expect(err).To(MatchError(context.Canceled))
		<-stuck
	})
})
