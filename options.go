package playerstate

import "log/slog"

// Option configures a Registry, Entity or World.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observer  func(TransitionEvent)
	authority bool
	ref       EntityRef
	hasRef    bool
}

// WithLogger sets the logger used for recovered faults. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers a callback invoked on every active-child change.
func WithObserver(fn func(TransitionEvent)) Option {
	return func(o *options) { o.observer = fn }
}

// WithAuthority sets whether the entity is locally authoritative. Only authoritative
// entities flag changes for network sync. Defaults to true.
func WithAuthority(authoritative bool) Option {
	return func(o *options) { o.authority = authoritative }
}

// WithRef fixes the entity reference instead of letting the World allocate one.
func WithRef(ref EntityRef) Option {
	return func(o *options) {
		o.ref = ref
		o.hasRef = true
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default(), authority: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
