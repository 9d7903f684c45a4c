package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/arrange/pkg/trace"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config")
}

var _ = Describe("Config", func() {
	It("should parse a full configuration", func() {
		c, err := Parse([]byte(`
maintenanceInterval: 250ms
stepInterval: 50ms
compactionLag: 0
collections:
  - name: orders
    bySelf: true
    columns: 3
    keys: [[2], [1, 0]]
    rowsPerStep: 4
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.MaintenanceInterval.Duration).To(Equal(250 * time.Millisecond))
		Expect(c.StepInterval.Duration).To(Equal(50 * time.Millisecond))
		Expect(*c.CompactionLag).To(Equal(uint64(0)))
		Expect(c.Collections).To(HaveLen(1))
		Expect(c.Collections[0].Projections()).To(Equal([]trace.KeyProjection{{2}, {1, 0}}))
		Expect(c.Collections[0].RowsPerStep).To(Equal(4))
	})

	It("should apply defaults", func() {
		c, err := Parse([]byte(`
collections:
  - name: orders
    bySelf: true
    columns: 1
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.MaintenanceInterval.Duration).To(Equal(DefaultMaintenanceInterval))
		Expect(c.StepInterval.Duration).To(Equal(DefaultStepInterval))
		Expect(*c.CompactionLag).To(Equal(uint64(DefaultCompactionLag)))
		Expect(c.Collections[0].RowsPerStep).To(Equal(DefaultRowsPerStep))
	})

	DescribeTable("should reject invalid configurations",
		func(doc string) {
			_, err := Parse([]byte(doc))
			Expect(err).To(MatchError(ErrInvalidConfig))
		},
		Entry("missing name", `collections: [{bySelf: true, columns: 1}]`),
		Entry("duplicate name", `collections: [{name: a, bySelf: true, columns: 1}, {name: a, bySelf: true, columns: 1}]`),
		Entry("no columns", `collections: [{name: a, bySelf: true}]`),
		Entry("not arranged", `collections: [{name: a, columns: 2}]`),
		Entry("column out of range", `collections: [{name: a, columns: 2, keys: [[2]]}]`),
		Entry("negative column", `collections: [{name: a, columns: 2, keys: [[-1]]}]`),
		Entry("duplicate projection", `collections: [{name: a, columns: 2, keys: [[0, 1], [0, 1]]}]`),
		Entry("negative interval", `{maintenanceInterval: -1s, collections: []}`),
	)

	It("should accept projections that differ in order", func() {
		_, err := Parse([]byte(`collections: [{name: a, columns: 2, keys: [[0, 1], [1, 0]]}]`))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject unknown fields", func() {
		_, err := Parse([]byte(`{collections: [], maintenance: 1s}`))
		Expect(err).To(HaveOccurred())
	})

	It("should load a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(`collections: [{name: a, bySelf: true, columns: 1}]`), 0o600)).
			To(Succeed())
		c, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Collections[0].Name).To(Equal("a"))

		_, err = Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
