package stream

import "github.com/rs/zerolog"

type options struct {
	buffer int
	logger zerolog.Logger
	group  *Group
}

// Option configures Open.
type Option func(*options)

// WithBuffer sets the channel capacity. Values below one are raised to one.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.buffer = n
	}
}

// WithLogger attaches a logger; the stream adds its id as a field.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithGroup tracks the stream in g until it terminates.
func WithGroup(g *Group) Option {
	return func(o *options) {
		o.group = g
	}
}
