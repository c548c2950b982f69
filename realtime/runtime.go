package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/playerstate"
)

var (
	ErrQueueFull      = errors.New("realtime: command queue full")
	ErrAlreadyRunning = errors.New("realtime: runtime already running")
)

// Syncer exchanges state with remote peers around each tick. netsync.Session
// implements it.
type Syncer interface {
	ApplyInbound()
	Flush()
}

// Config configures the runtime.
type Config struct {
	TickRate           time.Duration // fixed tick rate, e.g. 16.67ms for 60 FPS
	MaxCommandsPerTick int           // command queue capacity (default 1000)
}

// Option configures optional runtime behavior.
type Option func(*Runtime)

// WithSyncer exchanges network state before and after every tick.
func WithSyncer(s Syncer) Option {
	return func(rt *Runtime) { rt.syncer = s }
}

// WithLogger sets the logger used for recovered tick panics.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithTickHook calls fn on the tick goroutine after every completed tick.
func WithTickHook(fn func(tick uint64)) Option {
	return func(rt *Runtime) { rt.onTick = fn }
}

// Runtime ticks a World at a fixed rate.
type Runtime struct {
	world  *playerstate.World
	syncer Syncer
	logger *slog.Logger
	onTick func(uint64)

	tickRate    time.Duration
	maxCommands int

	mu          sync.Mutex
	tickNum     uint64
	batch       []Command
	sequenceNum uint64

	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewRuntime creates a runtime over world.
func NewRuntime(world *playerstate.World, cfg Config, opts ...Option) *Runtime {
	if cfg.MaxCommandsPerTick == 0 {
		cfg.MaxCommandsPerTick = 1000
	}
	if cfg.TickRate == 0 {
		cfg.TickRate = 16667 * time.Microsecond
	}
	rt := &Runtime{
		world:       world,
		logger:      slog.Default(),
		tickRate:    cfg.TickRate,
		maxCommands: cfg.MaxCommandsPerTick,
		batch:       make([]Command, 0, cfg.MaxCommandsPerTick),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// World returns the ticked world.
func (rt *Runtime) World() *playerstate.World { return rt.world }

// TickRate returns the configured tick interval.
func (rt *Runtime) TickRate() time.Duration { return rt.tickRate }

// Start runs Step on a ticker until ctx is done or Stop is called.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancel != nil {
		return ErrAlreadyRunning
	}
	tickCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.stopped = make(chan struct{})
	go rt.tickLoop(tickCtx, rt.stopped)
	rt.logger.Info("tick loop started", slog.Duration("rate", rt.tickRate))
	return nil
}

// Stop halts the tick loop and waits for the current tick to finish.
func (rt *Runtime) Stop() error {
	rt.mu.Lock()
	cancel, stopped := rt.cancel, rt.stopped
	rt.cancel = nil
	rt.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped
	return nil
}

// Wait blocks until the tick loop exits.
func (rt *Runtime) Wait() {
	rt.mu.Lock()
	stopped := rt.stopped
	rt.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}

func (rt *Runtime) tickLoop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(rt.tickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.safeStep()
		}
	}
}

// safeStep keeps the loop alive across a panicking hook.
func (rt *Runtime) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("tick panicked",
				slog.Uint64("tick", rt.TickNumber()),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	rt.Step()
}

// Submit queues fn to run at the start of the next tick. Safe for concurrent use.
func (rt *Runtime) Submit(fn func(*playerstate.World)) error {
	return rt.SubmitWithPriority(fn, 0)
}

// SubmitWithPriority queues fn ahead of lower-priority commands.
func (rt *Runtime) SubmitWithPriority(fn func(*playerstate.World), priority int) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.batch) >= rt.maxCommands {
		return ErrQueueFull
	}
	rt.batch = append(rt.batch, Command{Apply: fn, SequenceNum: rt.sequenceNum, Priority: priority})
	rt.sequenceNum++
	return nil
}

// TickNumber returns the number of completed ticks.
func (rt *Runtime) TickNumber() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tickNum
}
