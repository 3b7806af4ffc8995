package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.n, p.err
}

func (p *countingPurger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestNewRetentionScheduler(t *testing.T) {
	s := NewRetentionScheduler(&countingPurger{}, nil)
	assert.Equal(t, time.Hour, s.config.Interval)
	assert.False(t, s.IsRunning())
	assert.Equal(t, "Retention: Stopped", s.Status().String())
}

func TestRetentionScheduler_StartStop(t *testing.T) {
	purger := &countingPurger{n: 2}
	swept := make(chan int64, 16)
	s := NewRetentionScheduler(purger, &RetentionConfig{
		Interval:         10 * time.Millisecond,
		StartImmediately: true,
		OnSweep: func(n int64, err error) {
			select {
			case swept <- n:
			default:
			}
		},
	})

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start should fail")
	assert.True(t, s.IsRunning())

	for i := 0; i < 2; i++ {
		select {
		case n := <-swept:
			assert.Equal(t, int64(2), n)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sweep")
		}
	}

	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "second stop should fail")
	assert.False(t, s.IsRunning())

	status := s.Status()
	assert.GreaterOrEqual(t, status.SweepCount, 2)
	assert.Equal(t, int64(2)*int64(status.SweepCount), status.Purged)

	// Restart after stop.
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}

func TestRetentionScheduler_InvalidInterval(t *testing.T) {
	s := NewRetentionScheduler(&countingPurger{}, &RetentionConfig{})
	assert.Error(t, s.Start())
}

func TestRetentionScheduler_SweepFailure(t *testing.T) {
	purger := &countingPurger{err: errors.New("disk I/O error")}
	s := NewRetentionScheduler(purger, DefaultRetentionConfig())

	s.Sweep(context.Background())

	status := s.Status()
	assert.Equal(t, 1, status.FailureCount)
	assert.Equal(t, int64(0), status.Purged)
	assert.EqualError(t, status.LastError, "disk I/O error")
	assert.Equal(t, 1, purger.Calls())
}
