// Package stream bridges push-style callbacks into cancellable channel streams.
//
// A stream is opened with a Producer that registers a callback and returns the
// matching Teardown. The callback pushes values through the Sink it was given.
// However the stream ends (context cancelled, Close called, or the producer
// closing the sink) the teardown runs exactly once before Values is closed.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBuffer is the channel capacity used when no WithBuffer option is given.
const DefaultBuffer = 16

// ErrNoValue is returned by First when the stream ended without emitting.
var ErrNoValue = errors.New("stream ended without a value")

// Teardown undoes a registration. A nil Teardown is allowed.
type Teardown func()

// Sink is the producer side of a stream.
type Sink[T any] interface {
	// Emit delivers v to the consumer. It blocks while the buffer is full and
	// returns false once the stream is terminating.
	Emit(v T) bool
	// Active reports whether the stream still accepts values. It turns false
	// as soon as Close is called or the consumer stops.
	Active() bool
	// Close terminates the stream. A nil err means normal completion.
	Close(err error)
}

// Producer registers whatever feeds the stream. A returned error terminates the
// stream before any value is delivered and no teardown is run.
type Producer[T any] func(ctx context.Context, sink Sink[T]) (Teardown, error)

// Stream is a single subscription.
type Stream[T any] struct {
	id     string
	values chan T
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	logger zerolog.Logger

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	err      error
}

// Open starts a stream. The producer runs on a goroutine owned by the stream.
func Open[T any](ctx context.Context, producer Producer[T], opts ...Option) *Stream[T] {
	o := options{buffer: DefaultBuffer, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	s := &Stream[T]{
		id:     id,
		values: make(chan T, o.buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: o.logger.With().Str("stream_id", id).Logger(),
	}

	if o.group != nil {
		o.group.track(s)
	}

	go func() {
		if o.group != nil {
			defer o.group.untrack(id)
		}
		s.run(ctx, producer)
	}()

	return s
}

// Single returns a stream that emits v once and completes.
func Single[T any](ctx context.Context, v T, opts ...Option) *Stream[T] {
	return Open(ctx, func(_ context.Context, sink Sink[T]) (Teardown, error) {
		sink.Emit(v)
		sink.Close(nil)
		return nil, nil
	}, opts...)
}

// Failed returns a stream that terminates with err without emitting.
func Failed[T any](ctx context.Context, err error, opts ...Option) *Stream[T] {
	return Open(ctx, func(context.Context, Sink[T]) (Teardown, error) {
		return nil, err
	}, opts...)
}

// First waits for the first value of s and then closes it.
func First[T any](ctx context.Context, s *Stream[T]) (T, error) {
	defer s.Close()

	var zero T
	select {
	case v, ok := <-s.Values():
		if ok {
			return v, nil
		}
		if err := s.Err(); err != nil {
			return zero, err
		}
		return zero, ErrNoValue
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Stream[T]) run(ctx context.Context, producer Producer[T]) {
	defer close(s.done)
	defer s.closeValues()
	defer s.cancel()

	teardown, err := s.register(ctx, producer)
	if err != nil {
		s.terminate(err)
		s.logger.Debug().Err(err).Msg("Stream registration failed")
		return
	}
	if teardown != nil {
		defer func() {
			teardown()
			s.logger.Debug().Msg("Stream torn down")
		}()
	}

	select {
	case <-ctx.Done():
		s.terminate(nil)
	case <-s.stop:
	}
}

// register calls producer, turning a panic into an error.
func (s *Stream[T]) register(ctx context.Context, producer Producer[T]) (teardown Teardown, err error) {
	defer func() {
		if r := recover(); r != nil {
			teardown = nil
			err = fmt.Errorf("stream registration panicked: %v", r)
		}
	}()
	return producer(ctx, sink[T]{s})
}

func (s *Stream[T]) terminate(err error) {
	s.stopOnce.Do(func() {
		s.err = err
		close(s.stop)
	})
}

func (s *Stream[T]) closeValues() {
	s.mu.Lock()
	s.closed = true
	close(s.values)
	s.mu.Unlock()
}

// sink is the Sink handed to producers.
type sink[T any] struct {
	s *Stream[T]
}

func (k sink[T]) Emit(v T) bool { return k.s.emit(v) }
func (k sink[T]) Active() bool { return k.s.active() }
func (k sink[T]) Close(err error) { k.s.terminate(err) }

func (s *Stream[T]) active() bool {
	select {
	case <-s.stop:
		return false
	default:
		return true
	}
}

func (s *Stream[T]) emit(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.values <- v:
		return true
	case <-s.stop:
		return false
	}
}

// ID returns the unique id of this subscription.
func (s *Stream[T]) ID() string {
	return s.id
}

// Values returns the channel of emitted values. It is closed once the stream
// has terminated and its teardown has run.
func (s *Stream[T]) Values() <-chan T {
	return s.values
}

// Done is closed after the stream terminated and its teardown ran.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Err waits for termination and returns the terminal error, nil when the
// stream was cancelled or completed normally.
func (s *Stream[T]) Err() error {
	<-s.done
	return s.err
}

// Close cancels the subscription and returns after its teardown has run.
// It must not be called from inside the callback feeding the stream.
func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}
