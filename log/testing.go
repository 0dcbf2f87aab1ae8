package log

import (
	"go.uber.org/zap/zaptest"
)

// TB is the subset of testing.TB the test logger needs.
type TB interface {
	Logf(string, ...interface{})
	Helper()
}

// NewTesting returns a Logger that writes through t, via zap's zaptest
// adapter, so failing assertions in a package's own tests surface log
// output next to the failure instead of on stdout.
func NewTesting(t zaptest.TestingT) Logger {
	return NewZap(zaptest.NewLogger(t))
}
