package link

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	b := &Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.Next())

	d := DefaultBackoff()
	assert.Equal(t, 100*time.Millisecond, d.Next())
}

func TestSleep(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	done := make(chan error, 1)
	go func() { done <- Sleep(context.Background(), mock, time.Second) }()

	require.Eventually(t, func() bool {
		mock.Add(250 * time.Millisecond)
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, mock, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, mock, 0), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), mock, 0))
}
