package mqtt

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// ThrottleMiddleware drops publishes that arrive within minInterval of the
// last forwarded publish on the same topic. High-rate streams such as bearing
// updates would otherwise flood the broker.
type ThrottleMiddleware struct {
	next        MQTTMiddleware
	minInterval time.Duration
	last        cmap.ConcurrentMap[string, time.Time]
	now         func() time.Time
	logger      zerolog.Logger
}

// NewThrottleMiddleware creates a throttle. A zero interval forwards everything.
func NewThrottleMiddleware(minInterval time.Duration, logger zerolog.Logger) *ThrottleMiddleware {
	return &ThrottleMiddleware{
		minInterval: minInterval,
		last:        cmap.New[time.Time](),
		now:         time.Now,
		logger:      logger,
	}
}

// SetNext sets the next middleware in the chain.
func (m *ThrottleMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

// Publish forwards the message unless the topic is inside its quiet window.
func (m *ThrottleMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	now := m.now()
	admitted := true
	m.last.Upsert(topic, now, func(exist bool, prev, now time.Time) time.Time {
		if exist && now.Sub(prev) < m.minInterval {
			admitted = false
			return prev
		}
		return now
	})
	if !admitted {
		m.logger.Trace().Str("topic", topic).Msg("Publish throttled")
		return nil
	}
	return m.next.Publish(topic, qos, retained, payload)
}
