// Package geolocation provides a FusedLocationClient that locates the host
// through the Google Maps Geolocation API.
package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

const (
	// ProviderName is stamped on every fix from this client.
	ProviderName = "fused"
	// MinInterval bounds how often the API is polled.
	MinInterval = time.Second
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 10 * time.Second
)

// Geolocator is the part of the Maps client this package uses.
type Geolocator interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// Client polls the Geolocation API for every registered callback.
type Client struct {
	api     Geolocator
	scanner SignalScanner
	timeout time.Duration
	logger  zerolog.Logger

	last stream.Latest[platform.Fix]

	mu   sync.Mutex
	regs map[platform.LocationCallback]*poll
}

type poll struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client from a Maps API key.
func NewClient(apiKey string, scanner SignalScanner, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return NewClientWithGeolocator(c, scanner, timeout, logger), nil
}

// NewClientWithGeolocator creates a client over an existing Geolocator.
func NewClientWithGeolocator(api Geolocator, scanner SignalScanner, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     api,
		scanner: scanner,
		timeout: timeout,
		logger:  logger.With().Str("backend", "geolocation").Logger(),
		regs:    make(map[platform.LocationCallback]*poll),
	}
}

// LastLocation returns the most recent fix this client obtained, or nil.
func (c *Client) LastLocation(ctx context.Context) (*platform.Fix, error) {
	return c.last.Load(), nil
}

// RequestLocationUpdates locates immediately and then every req.Interval,
// delivering each fix to cb on looper. Failed requests are logged and skipped.
func (c *Client) RequestLocationUpdates(req platform.LocationRequest, cb platform.LocationCallback, looper *platform.Looper) error {
	if err := c.RemoveLocationUpdates(cb); err != nil {
		return err
	}

	interval := req.Interval
	if interval < MinInterval {
		interval = MinInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &poll{cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.regs[cb] = p
	c.mu.Unlock()

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			fix, err := c.Locate(ctx, req.Priority)
			switch {
			case err == nil:
				if !looper.Post(func() { cb.OnLocationResult(platform.LocationResult{Locations: []platform.Fix{fix}}) }) {
					return
				}
			case errors.Is(err, context.Canceled):
				return
			default:
				c.logger.Warn().Err(err).Str("priority", req.Priority.String()).Msg("Geolocation request failed")
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	c.logger.Info().
		Str("priority", req.Priority.String()).
		Dur("interval", interval).
		Msg("Geolocation updates requested")
	return nil
}

// RemoveLocationUpdates stops polling for cb.
func (c *Client) RemoveLocationUpdates(cb platform.LocationCallback) error {
	c.mu.Lock()
	p, ok := c.regs[cb]
	delete(c.regs, cb)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	p.cancel()
	<-p.done
	return nil
}

// Locate performs one Geolocation API request using the signals the
// priority allows, and caches the result.
func (c *Client) Locate(ctx context.Context, priority platform.Priority) (platform.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}
	if priority != platform.PriorityLowPower && c.scanner != nil {
		wifiAPs, err := c.scanner.WiFiAccessPoints(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("WiFi scan failed")
		}
		req.WiFiAccessPoints = wifiAPs
	}
	if priority == platform.PriorityHighAccuracy && c.scanner != nil {
		cellTowers, err := c.scanner.CellTowers(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Cell tower scan failed")
		}
		req.CellTowers = cellTowers
	}

	resp, err := c.api.Geolocate(ctx, req)
	if err != nil {
		return platform.Fix{}, err
	}

	fix := platform.Fix{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
		Provider:  ProviderName,
		Time:      time.Now(),
	}
	c.last.Store(fix)
	return fix, nil
}
