package goroutine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_WaitJoinsErrors(t *testing.T) {
	m := NewManager(4)
	errA := errors.New("consumer a failed")

	require.NoError(t, m.Go(context.Background(), func(context.Context) error { return errA }))
	require.NoError(t, m.Go(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, m.Go(context.Background(), func(context.Context) error { return context.Canceled }))
	require.NoError(t, m.Go(context.Background(), func(context.Context) error { panic("boom") }))

	err := m.Wait()
	assert.ErrorIs(t, err, errA)
	assert.NotErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, m.Go(context.Background(), func(context.Context) error { return nil }), ErrClosed)
}

func TestManager_LimitReached(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})

	require.NoError(t, m.Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))

	assert.ErrorIs(t, m.Go(context.Background(), func(context.Context) error { return nil }), ErrLimitReached)

	close(release)
	assert.NoError(t, m.Wait())
}

func TestManager_SkipsCanceledContext(t *testing.T) {
	m := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	require.NoError(t, m.Go(ctx, func(context.Context) error {
		called = true
		return nil
	}))
	require.NoError(t, m.Wait())
	assert.False(t, called)
}
