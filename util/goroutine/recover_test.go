package goroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	func() {
		defer Recover("quiet", logger)
	}()
}

func TestRecover_LogsPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("http-server", logger)
		panic("listener exploded")
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Goroutine panic recovered", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "http-server", fields["goroutine"])
	assert.Equal(t, "listener exploded", fields["panic"])
	assert.Contains(t, fields, "stack")
}

func TestGo_RecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	done := make(chan struct{})
	Go("worker", logger, func() {
		defer close(done)
		panic("boom")
	})
	<-done

	assert.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 10*time.Millisecond)
}
