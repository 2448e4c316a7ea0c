package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoller_FiresOnce(t *testing.T) {
	p := NewPoller(10 * time.Millisecond)
	var fired atomic.Int32

	p.Schedule(context.Background(), func(ctx context.Context) { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestPoller_ContextCancelStopsTimer(t *testing.T) {
	p := NewPoller(20 * time.Millisecond)
	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	p.Schedule(ctx, func(ctx context.Context) { fired.Add(1) })
	cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestPoller_StopFunc(t *testing.T) {
	p := NewPoller(20 * time.Millisecond)
	var fired atomic.Int32

	stop := p.Schedule(context.Background(), func(ctx context.Context) { fired.Add(1) })
	assert.True(t, stop())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, stop())
}

func TestNewPoller_NegativeDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), NewPoller(-time.Second).Delay())
	assert.Equal(t, DefaultReconcileDelay, NewPoller(DefaultReconcileDelay).Delay())
}
