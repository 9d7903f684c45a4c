package testutils

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// OrderRows is a small "orders" collection used across tests: (id, customer, amount).
var OrderRows = [][]any{
	{int64(1), "alice", int64(30)},
	{int64(2), "bob", int64(12)},
	{int64(3), "alice", int64(7)},
	{int64(4), "carol", int64(50)},
}

// NewLogger returns a development logger writing to the Ginkgo writer at the given verbosity.
func NewLogger(level int) logr.Logger {
	opts := zap.Options{
		Development:     true,
		DestWriter:      GinkgoWriter,
		StacktraceLevel: zapcore.Level(4),
		TimeEncoder:     zapcore.RFC3339NanoTimeEncoder,
		Level:           zapcore.Level(-level), //nolint:gosec
	}
	return zap.New(zap.UseFlagOptions(&opts))
}
