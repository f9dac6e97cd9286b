// internal/pkg/tasks/runner_test.go
package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunner_ExecutesSubmittedTasks(t *testing.T) {
	r := NewRunner(2, 8, time.Second, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		r.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	r.Close()

	assert.Equal(t, int32(5), ran.Load())
}

func TestRunner_PanicDoesNotKillWorker(t *testing.T) {
	r := NewRunner(1, 8, time.Second, zap.NewNop())

	var ran atomic.Bool
	r.Submit("boom", func(ctx context.Context) error {
		panic("task panic")
	})
	r.Submit("after", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Close()

	assert.True(t, ran.Load(), "worker must survive a panicking task")
}

func TestRunner_FailingTaskIsIsolated(t *testing.T) {
	r := NewRunner(1, 8, time.Second, zap.NewNop())

	var ran atomic.Bool
	r.Submit("fail", func(ctx context.Context) error {
		return errors.New("smtp down")
	})
	r.Submit("after", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Close()

	assert.True(t, ran.Load())
}

func TestRunner_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	r := NewRunner(1, 1, time.Second, zap.NewNop())

	block := make(chan struct{})
	r.Submit("block", func(ctx context.Context) error {
		<-block
		return nil
	})
	// fill the single buffer slot, then overflow
	r.Submit("queued", func(ctx context.Context) error { return nil })

	done := make(chan struct{})
	go func() {
		r.Submit("dropped", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(block)
	r.Close()
}

func TestRunner_TaskContextHasTimeout(t *testing.T) {
	r := NewRunner(1, 8, 50*time.Millisecond, zap.NewNop())

	var hadDeadline atomic.Bool
	r.Submit("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	})
	r.Close()

	assert.True(t, hadDeadline.Load())
}
