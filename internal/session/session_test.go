package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreTransitions(t *testing.T) {
	s := NewStore()
	assert.Equal(t, StateUnlinked, s.Get("telegram:1").State)

	s.SetPending("telegram:1", Profile{ChannelID: 1, Name: "Ana"})
	got := s.Get("telegram:1")
	assert.Equal(t, StatePendingEmail, got.State)
	require.NotNil(t, got.Pending)
	assert.Equal(t, "Ana", got.Pending.Name)

	s.Link("telegram:1", "user-1")
	got = s.Get("telegram:1")
	assert.Equal(t, StateLinked, got.State)
	assert.Equal(t, "user-1", got.UserID)
	assert.Nil(t, got.Pending)
	assert.Equal(t, 1, s.Len())

	s.Reset("telegram:1")
	assert.Equal(t, StateUnlinked, s.Get("telegram:1").State)
	assert.Equal(t, "PENDING_EMAIL", StatePendingEmail.String())
}

func TestQueueKeepsOrderWithinKey(t *testing.T) {
	q := NewQueue(4, nil)
	var mu sync.Mutex
	var got []int

	for i := 0; i < 50; i++ {
		q.Submit(context.Background(), "chat", func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Wait()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueRunsKeysConcurrently(t *testing.T) {
	q := NewQueue(2, nil)
	release := make(chan struct{})
	otherDone := make(chan struct{})

	q.Submit(context.Background(), "a", func(context.Context) { <-release })
	q.Submit(context.Background(), "b", func(context.Context) { close(otherDone) })

	select {
	case <-otherDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second session was blocked by the first one")
	}
	close(release)
	q.Wait()
}

func TestQueueBoundsConcurrency(t *testing.T) {
	q := NewQueue(2, nil)
	var running, peak atomic.Int32

	for i := 0; i < 10; i++ {
		q.Submit(context.Background(), fmt.Sprintf("chat-%d", i), func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	q.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestQueueRecoversPanics(t *testing.T) {
	q := NewQueue(1, nil)
	ran := false

	q.Submit(context.Background(), "chat", func(context.Context) { panic("boom") })
	err := q.Do(context.Background(), "chat", func(context.Context) { ran = true })

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestQueueSkipsCancelledJobs(t *testing.T) {
	q := NewQueue(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	q.Submit(context.Background(), "a", func(context.Context) {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	done := q.Submit(ctx, "b", func(context.Context) { ran = true })
	cancel()
	<-done
	close(release)
	q.Wait()

	assert.False(t, ran)
}

func TestQueueWithoutLoggerUsesDiscard(t *testing.T) {
	q := NewQueue(1, nil)
	assert.False(t, q.logger.Enabled(context.Background(), slog.LevelError))
}
