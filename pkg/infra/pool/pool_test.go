package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitAndWait(t *testing.T) {
	p, err := NewPool("test", IndexPool, nil)
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	var n atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int32(20), n.Load())
	stats := p.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Completed)
}

func TestPool_SubmitAfterRelease(t *testing.T) {
	p, err := NewPool("closed", BackgroundPool, nil)
	require.NoError(t, err)
	require.NoError(t, p.Release(time.Second))

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	// 重复释放是安全的
	assert.NoError(t, p.Release(time.Second))
}

func TestPool_SubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("ctx", BackgroundPool, nil)
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.SubmitWithContext(ctx, func(context.Context) { t.Error("task must not run") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_PanicRecovered(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool("panic", BackgroundPool, &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		Nonblocking:    true,
		PanicHandler:   func(r interface{}) { recovered <- r },
	})
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler not called")
	}
	p.Wait()
	assert.Equal(t, int64(1), p.Stats().Panics)
	assert.Equal(t, int64(0), p.Stats().Completed)
}
