package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/pkg/stream"
)

// Publisher is the outbound side of the MQTT middleware chain.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
}

// consumer subscribes to a stream, publishes each value as JSON and
// resubscribes with backoff when the stream fails. Streams never retry on
// their own.
type consumer[T any] struct {
	name      string
	topic     string
	qos       int
	open      func(ctx context.Context) *stream.Stream[T]
	encode    func(T) any
	permanent func(error) bool
	publisher Publisher
	backoff   Backoff
	logger    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Start subscribes in the background.
func (c *consumer[T]) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.logger.Warn().Msgf("%s service is already running", c.name)
		return fmt.Errorf("%s service is already running", c.name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()

	c.logger.Info().
		Str("topic", c.topic).
		Int("qos", c.qos).
		Msgf("%s service started", c.name)
	return nil
}

// Stop cancels the subscription and waits for its teardown.
func (c *consumer[T]) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		c.logger.Warn().Msgf("%s service is not running", c.name)
		return fmt.Errorf("%s service is not running", c.name)
	}

	c.cancel()
	c.wg.Wait()
	c.running = false
	c.logger.Info().Msgf("%s service stopped", c.name)
	return nil
}

func (c *consumer[T]) run(ctx context.Context) {
	attempt := 0
	for {
		s := c.open(ctx)
		c.logger.Debug().Str("stream_id", s.ID()).Msg("Subscribed")

		for v := range s.Values() {
			attempt = 0
			if err := c.publish(v); err != nil {
				c.logger.Error().Err(err).Str("topic", c.topic).Msg("Failed to publish message")
			}
		}

		err := s.Err()
		switch {
		case ctx.Err() != nil:
			return
		case err == nil:
			c.logger.Info().Msg("Stream completed")
			return
		case c.permanent != nil && c.permanent(err):
			c.logger.Error().Err(err).Msg("Stream failed permanently, not resubscribing")
			return
		}

		delay := c.backoff.Delay(attempt)
		attempt++
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Stream failed, resubscribing")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *consumer[T]) publish(v T) error {
	payload, err := json.Marshal(c.encode(v))
	if err != nil {
		return fmt.Errorf("failed to serialize %s message: %w", c.name, err)
	}
	return c.publisher.Publish(c.topic, byte(c.qos), false, payload)
}

// isPermanentType reports whether err wraps an E. Used for errors no retry can fix.
func isPermanentType[E error](err error) bool {
	var target E
	return errors.As(err, &target)
}
