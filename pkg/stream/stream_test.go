package stream_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/geosense/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pusher captures the sink a producer was given so tests can drive it.
type pusher struct {
	mu        sync.Mutex
	sink      stream.Sink[int]
	torndown  atomic.Int32
	ready     chan struct{}
	readyOnce sync.Once
}

func newPusher() *pusher {
	return &pusher{ready: make(chan struct{})}
}

func (p *pusher) producer(_ context.Context, sink stream.Sink[int]) (stream.Teardown, error) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
	p.readyOnce.Do(func() { close(p.ready) })
	return func() { p.torndown.Add(1) }, nil
}

func (p *pusher) get(t *testing.T) stream.Sink[int] {
	select {
	case <-p.ready:
	case <-time.After(time.Second):
		t.Fatal("producer was never called")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink
}

func TestStream_EmitThenClose(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer)

	sink := p.get(t)
	assert.True(t, sink.Emit(1))
	assert.True(t, sink.Emit(2))

	assert.Equal(t, 1, <-s.Values())
	assert.Equal(t, 2, <-s.Values())

	s.Close()
	_, ok := <-s.Values()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
	assert.Equal(t, int32(1), p.torndown.Load())

	// closing twice does not tear down twice
	s.Close()
	assert.Equal(t, int32(1), p.torndown.Load())
	assert.False(t, sink.Emit(3))
}

func TestStream_ContextCancelTearsDown(t *testing.T) {
	p := newPusher()
	ctx, cancel := context.WithCancel(context.Background())
	s := stream.Open(ctx, p.producer)
	p.get(t)

	cancel()
	<-s.Done()
	assert.Equal(t, int32(1), p.torndown.Load())
	assert.NoError(t, s.Err())
}

func TestStream_SinkCloseWithError(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer)
	boom := errors.New("boom")

	p.get(t).Close(boom)

	assert.ErrorIs(t, s.Err(), boom)
	assert.Equal(t, int32(1), p.torndown.Load())
}

func TestStream_SinkActiveUntilStopped(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer)
	sink := p.get(t)

	assert.True(t, sink.Active())

	s.Close()
	assert.False(t, sink.Active())
	assert.False(t, sink.Emit(1))
}

func TestStream_RegistrationErrorSkipsTeardown(t *testing.T) {
	boom := errors.New("registration failed")
	called := false
	s := stream.Open(context.Background(), func(context.Context, stream.Sink[int]) (stream.Teardown, error) {
		return func() { called = true }, boom
	})

	_, ok := <-s.Values()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), boom)
	assert.False(t, called)
}

func TestStream_RegistrationPanicBecomesError(t *testing.T) {
	s := stream.Open(context.Background(), func(context.Context, stream.Sink[int]) (stream.Teardown, error) {
		panic("unsupported provider")
	})

	err := s.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestStream_EmitUnblocksOnClose(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer, stream.WithBuffer(1))
	sink := p.get(t)
	require.True(t, sink.Emit(1))

	result := make(chan bool)
	go func() { result <- sink.Emit(2) }()

	s.Close()
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Emit stayed blocked after Close")
	}
}

func TestSingle(t *testing.T) {
	s := stream.Single(context.Background(), 42)

	var got []int
	for v := range s.Values() {
		got = append(got, v)
	}
	assert.Equal(t, []int{42}, got)
	assert.NoError(t, s.Err())
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	s := stream.Failed[int](context.Background(), boom)

	_, ok := <-s.Values()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), boom)
}

func TestFirst(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer)
	go p.get(t).Emit(7)

	v, err := stream.First(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), p.torndown.Load())
}

func TestFirst_StreamError(t *testing.T) {
	boom := errors.New("boom")
	_, err := stream.First(context.Background(), stream.Failed[int](context.Background(), boom))
	assert.ErrorIs(t, err, boom)
}

func TestFirst_CompletedWithoutValue(t *testing.T) {
	s := stream.Open(context.Background(), func(_ context.Context, sink stream.Sink[int]) (stream.Teardown, error) {
		sink.Close(nil)
		return nil, nil
	})
	_, err := stream.First(context.Background(), s)
	assert.ErrorIs(t, err, stream.ErrNoValue)
}

func TestFirst_ContextDeadline(t *testing.T) {
	p := newPusher()
	s := stream.Open(context.Background(), p.producer)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := stream.First(ctx, s)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), p.torndown.Load())
}

func TestGroup_CloseAll(t *testing.T) {
	g := stream.NewGroup()
	p1, p2 := newPusher(), newPusher()
	s1 := stream.Open(context.Background(), p1.producer, stream.WithGroup(g))
	s2 := stream.Open(context.Background(), p2.producer, stream.WithGroup(g))
	p1.get(t)
	p2.get(t)
	assert.Equal(t, 2, g.Len())

	g.CloseAll()
	<-s1.Done()
	<-s2.Done()
	assert.Equal(t, int32(1), p1.torndown.Load())
	assert.Equal(t, int32(1), p2.torndown.Load())
	assert.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLatest(t *testing.T) {
	var l stream.Latest[int]
	assert.Nil(t, l.Load())

	l.Store(1)
	l.Store(2)
	require.NotNil(t, l.Load())
	assert.Equal(t, 2, *l.Load())

	v := l.Load()
	*v = 99
	assert.Equal(t, 2, *l.Load())
}
