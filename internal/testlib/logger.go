package testlib

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

type testingWriter struct {
	tb testing.TB
}

func (tw *testingWriter) Write(b []byte) (int, error) {
	tw.tb.Log(string(b))
	return len(b), nil
}

// MakeLogger creates a log.FieldLogger that routes to the given testing instance.
func MakeLogger(tb testing.TB) log.FieldLogger {
	logger := log.New()
	logger.SetOutput(&testingWriter{tb})
	logger.SetLevel(log.TraceLevel)

	return logger
}
