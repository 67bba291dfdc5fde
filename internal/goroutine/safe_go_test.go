package goroutine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	rh.SafeGo("boom", func() { panic("boom") })

	assert.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, log.lines[0], "goroutine boom")
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	rh := NewRecoveryHandler(&recordingLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	rh.SafeGoWithContext(ctx, "wait", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not observe cancellation")
	}
}
