package production

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/comalice/playerstate"
)

// PublishedTransition is a TransitionEvent with resolved names.
type PublishedTransition struct {
	Event   playerstate.TransitionEvent
	Machine string
	From    string
	To      string
	At      time.Time
}

// ChannelPublisher forwards transitions to a channel. Publishing never blocks the tick:
// when the channel is full the transition is dropped and counted.
type ChannelPublisher struct {
	ch      chan<- PublishedTransition
	graph   *playerstate.Graph
	dropped atomic.Uint64
	now     func() time.Time
}

// NewChannelPublisher creates a publisher for transitions of g's entities.
func NewChannelPublisher(g *playerstate.Graph, ch chan<- PublishedTransition) *ChannelPublisher {
	return &ChannelPublisher{ch: ch, graph: g, now: time.Now}
}

// Observer returns a callback for playerstate.WithObserver.
func (p *ChannelPublisher) Observer() func(playerstate.TransitionEvent) {
	return func(ev playerstate.TransitionEvent) {
		p.Publish(context.Background(), ev)
	}
}

// Publish sends one transition.
func (p *ChannelPublisher) Publish(ctx context.Context, ev playerstate.TransitionEvent) error {
	pt := PublishedTransition{
		Event:   ev,
		Machine: p.label(ev.Machine),
		From:    p.label(ev.From),
		To:      p.label(ev.To),
		At:      p.now(),
	}
	select {
	case p.ch <- pt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return nil
	}
}

func (p *ChannelPublisher) label(id playerstate.StateID) string {
	if id == playerstate.NoState {
		return ""
	}
	return name(p.graph, id)
}

// Dropped returns how many transitions were dropped on backpressure.
func (p *ChannelPublisher) Dropped() uint64 { return p.dropped.Load() }

// Close closes the output channel.
func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
