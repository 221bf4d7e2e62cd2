// Package nmea provides a LocationManager backed by an NMEA 0183 GPS receiver
// on a serial port.
package nmea

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"

	"github.com/benmeehan/geosense/pkg/platform"
)

// hdopToMeters converts horizontal dilution of precision into an accuracy
// estimate in metres, assuming a typical user equivalent range error.
const hdopToMeters = 5.0

// knotsToMPS converts RMC speed over ground into metres per second.
const knotsToMPS = 0.514444

// ErrUnsupportedProvider is returned for any provider other than gps.
var ErrUnsupportedProvider = errors.New("nmea: unsupported provider")

// OpenFunc opens the receiver's byte stream.
type OpenFunc func(port string, baudRate int) (io.ReadCloser, error)

// serialReadTimeout bounds each read so a closed port is noticed while the
// receiver is silent.
const serialReadTimeout = 500 * time.Millisecond

// OpenSerial opens a serial port with tarm/serial.
func OpenSerial(port string, baudRate int) (io.ReadCloser, error) {
	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: baudRate, ReadTimeout: serialReadTimeout})
	if err != nil {
		return nil, err
	}
	return newTimeoutPort(p), nil
}

// timeoutPort hides read timeouts from the scanner. A timed-out read comes
// back empty, which is retried until the port is closed.
type timeoutPort struct {
	port   io.ReadCloser
	closed atomic.Bool
}

func newTimeoutPort(port io.ReadCloser) *timeoutPort {
	return &timeoutPort{port: port}
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	for {
		if p.closed.Load() {
			return 0, io.EOF
		}
		n, err := p.port.Read(b)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
	}
}

func (p *timeoutPort) Close() error {
	p.closed.Store(true)
	return p.port.Close()
}

// LocationManager reads fixes from a GPS receiver. Each registered listener
// gets its own connection to the port.
type LocationManager struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
	open     OpenFunc
	logger   zerolog.Logger

	mu   sync.Mutex
	regs map[platform.LocationListener]*registration
}

type registration struct {
	conn io.ReadCloser
	stop chan struct{}
	done chan struct{}
}

// NewLocationManager creates a manager for the receiver on port. A nil open
// uses OpenSerial.
func NewLocationManager(port string, baudRate int, open OpenFunc, logger zerolog.Logger) *LocationManager {
	if open == nil {
		open = OpenSerial
	}
	return &LocationManager{
		port:     port,
		baudRate: baudRate,
		open:     open,
		logger:   logger.With().Str("port", port).Logger(),
		regs:     make(map[platform.LocationListener]*registration),
	}
}

// RequestLocationUpdates starts reading the receiver for l. A listener that is
// already registered is replaced.
func (m *LocationManager) RequestLocationUpdates(provider string, minTime time.Duration, minDistance float64,
	l platform.LocationListener, looper *platform.Looper) error {
	if provider != platform.GPSProvider {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if err := m.RemoveUpdates(l); err != nil {
		return err
	}

	conn, err := m.open(m.port, m.baudRate)
	if err != nil {
		return fmt.Errorf("nmea: open %s: %w", m.port, err)
	}

	reg := &registration{conn: conn, stop: make(chan struct{}), done: make(chan struct{})}
	m.mu.Lock()
	m.regs[l] = reg
	m.mu.Unlock()

	go m.read(reg, newThrottle(minTime, minDistance), l, looper)

	m.logger.Info().
		Dur("min_time", minTime).
		Float64("min_distance", minDistance).
		Msg("GPS listener registered")
	return nil
}

// RemoveUpdates stops delivering to l and closes its connection.
func (m *LocationManager) RemoveUpdates(l platform.LocationListener) error {
	m.mu.Lock()
	reg, ok := m.regs[l]
	delete(m.regs, l)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	close(reg.stop)
	err := reg.conn.Close()
	<-reg.done
	if err != nil {
		return fmt.Errorf("nmea: close %s: %w", m.port, err)
	}
	return nil
}

// read parses sentences until the connection ends. An unexpected end reports
// the provider as disabled.
func (m *LocationManager) read(reg *registration, th *throttle, l platform.LocationListener, looper *platform.Looper) {
	defer close(reg.done)

	looper.Post(func() { l.OnProviderEnabled(platform.GPSProvider) })

	var speed float64
	scanner := bufio.NewScanner(reg.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			m.logger.Debug().Err(err).Str("sentence", line).Msg("Skipping malformed NMEA sentence")
			continue
		}

		switch s := sentence.(type) {
		case nmea.RMC:
			if s.Validity == nmea.ValidRMC {
				speed = s.Speed * knotsToMPS
			}
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			fix := platform.Fix{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
				Altitude:  s.Altitude,
				Accuracy:  s.HDOP * hdopToMeters,
				Speed:     speed,
				Provider:  platform.GPSProvider,
				Time:      fixTime(s.Time),
			}
			if !th.admit(fix) {
				continue
			}
			if !looper.Post(func() { l.OnLocationChanged(fix) }) {
				return
			}
		}
	}

	select {
	case <-reg.stop:
		return
	default:
	}

	if err := scanner.Err(); err != nil {
		m.logger.Error().Err(err).Msg("GPS receiver read failed")
	} else {
		m.logger.Warn().Msg("GPS receiver closed the stream")
	}
	looper.Post(func() { l.OnProviderDisabled(platform.GPSProvider) })
}

// fixTime combines the sentence's UTC time of day with today's date.
func fixTime(t nmea.Time) time.Time {
	now := time.Now().UTC()
	if !t.Valid {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// throttle drops fixes that arrive sooner than minTime or closer than
// minDistance metres to the last admitted fix.
type throttle struct {
	minTime     time.Duration
	minDistance float64
	last        *platform.Fix
	lastAt      time.Time
	now         func() time.Time
}

func newThrottle(minTime time.Duration, minDistance float64) *throttle {
	return &throttle{minTime: minTime, minDistance: minDistance, now: time.Now}
}

func (t *throttle) admit(fix platform.Fix) bool {
	now := t.now()
	if t.last != nil {
		if now.Sub(t.lastAt) < t.minTime {
			return false
		}
		if t.minDistance > 0 && t.last.DistanceTo(fix) < t.minDistance {
			return false
		}
	}
	t.last = &fix
	t.lastAt = now
	return true
}
