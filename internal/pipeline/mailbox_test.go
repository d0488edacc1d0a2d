package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/rangeframe"
)

func TestMailboxKeepsMostRecent(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	assert.Nil(t, m.TryTake())

	for seq := uint64(1); seq <= 3; seq++ {
		f := rangeframe.NewFrame(4, 4)
		f.Seq = seq
		m.Put(f)
	}
	m.Put(nil)

	f, err := m.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Nil(t, m.TryTake())

	submitted, coalesced := m.Counts()
	assert.Equal(t, int64(3), submitted)
	assert.Equal(t, int64(2), coalesced)
}

func TestMailboxTakeBlocksUntilPut(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	got := make(chan uint64, 1)
	go func() {
		f, err := m.Take(context.Background())
		if err == nil {
			got <- f.Seq
		}
	}()

	time.Sleep(5 * time.Millisecond)
	f := rangeframe.NewFrame(2, 2)
	f.Seq = 9
	m.Put(f)

	select {
	case seq := <-got:
		assert.Equal(t, uint64(9), seq)
	case <-time.After(2 * time.Second):
		t.Fatal("Take did not return")
	}
}

func TestMailboxTakeCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMailbox().Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
