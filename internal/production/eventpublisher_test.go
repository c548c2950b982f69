package production

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/playerstate"
)

func TestChannelPublisherDelivery(t *testing.T) {
	g := testGraph(t)
	ch := make(chan PublishedTransition, 10)
	p := NewChannelPublisher(g, ch)

	e, err := g.Instantiate(nil, playerstate.WithObserver(p.Observer()), playerstate.WithRef(3))
	require.NoError(t, err)
	e.Start()
	root := playerstate.MachineOf(mustState(t, e, "t/Root"))
	require.True(t, root.TrySetActiveChild(mustState(t, e, "t/Dash"), false))

	var last PublishedTransition
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, playerstate.EntityRef(3), last.Event.Entity)
	assert.Equal(t, "t/Root", last.Machine)
	assert.Equal(t, "t/Idle", last.From)
	assert.Equal(t, "t/Dash", last.To)
	assert.False(t, last.At.IsZero())
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	g := testGraph(t)
	ch := make(chan PublishedTransition, 1)
	p := NewChannelPublisher(g, ch)
	ev := playerstate.TransitionEvent{Machine: 0, From: playerstate.NoState, To: 1}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.NoError(t, p.Publish(context.Background(), ev))
	assert.Equal(t, uint64(1), p.Dropped())

	got := <-ch
	assert.Empty(t, got.From)
	assert.Equal(t, "t/Idle", got.To)
	require.NoError(t, p.Close())
}

func mustState(t *testing.T, e *playerstate.Entity, name string) playerstate.State {
	t.Helper()
	s, err := e.StateByName(name)
	require.NoError(t, err)
	return s
}
