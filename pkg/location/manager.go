package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

// ManagerAdapter streams fixes from a named LocationManager provider.
type ManagerAdapter struct {
	perms   platform.PermissionChecker
	manager platform.LocationManager
	logger  zerolog.Logger

	last stream.Latest[platform.Fix]
	subs *stream.Group
}

// NewManagerAdapter builds an adapter over the context's location manager.
func NewManagerAdapter(pctx platform.Context, logger zerolog.Logger) (*ManagerAdapter, error) {
	manager := pctx.LocationManager()
	if manager == nil {
		return nil, ErrServiceUnavailable
	}
	return &ManagerAdapter{
		perms:   pctx.Permissions(),
		manager: manager,
		logger:  logger.With().Str("adapter", "location_manager").Logger(),
		subs:    stream.NewGroup(),
	}, nil
}

// LastKnown returns the most recent fix seen by any subscription, or nil.
func (a *ManagerAdapter) LastKnown() *platform.Fix {
	return a.last.Load()
}

// Updates registers for fixes from provider, at most one per interval and only
// after moving minDistance metres. The stream ends with ProviderDisabledError
// if the provider is switched off while subscribed.
func (a *ManagerAdapter) Updates(ctx context.Context, interval time.Duration, minDistance float64, provider string) *stream.Stream[platform.Fix] {
	return stream.Open(ctx, func(ctx context.Context, sink stream.Sink[platform.Fix]) (stream.Teardown, error) {
		want := platform.CoarseLocation
		if provider == platform.GPSProvider {
			want = platform.FineLocation
		}
		if err := checkPermission(a.perms, want); err != nil {
			return nil, err
		}

		looper := platform.NewLooper("location-manager-"+provider, looperDepth)
		registered := false
		defer func() {
			if !registered {
				looper.Quit()
			}
		}()

		l := &managerListener{
			provider: provider,
			sink:     sink,
			last:     &a.last,
			logger:   a.logger,
		}
		if err := a.manager.RequestLocationUpdates(provider, interval, minDistance, l, looper); err != nil {
			return nil, err
		}
		registered = true

		a.logger.Debug().
			Str("provider", provider).
			Dur("interval", interval).
			Float64("min_distance", minDistance).
			Msg("Registered location listener")

		return func() {
			if err := a.manager.RemoveUpdates(l); err != nil {
				a.logger.Warn().Err(err).Str("provider", provider).Msg("Failed to remove location listener")
			}
			looper.Quit()
		}, nil
	}, stream.WithLogger(a.logger), stream.WithGroup(a.subs))
}

// SingleFix waits for the first GPS fix and unregisters.
func (a *ManagerAdapter) SingleFix(ctx context.Context) (platform.Fix, error) {
	return stream.First(ctx, a.Updates(ctx, 0, 0, platform.GPSProvider))
}

// Subscriptions returns the number of open streams.
func (a *ManagerAdapter) Subscriptions() int {
	return a.subs.Len()
}

// Close terminates every open stream of this adapter.
func (a *ManagerAdapter) Close() {
	a.subs.CloseAll()
}

type managerListener struct {
	provider string
	sink     stream.Sink[platform.Fix]
	last     *stream.Latest[platform.Fix]
	logger   zerolog.Logger
}

func (l *managerListener) OnLocationChanged(fix platform.Fix) {
	if !l.sink.Active() {
		return
	}
	l.last.Store(fix)
	l.sink.Emit(fix)
}

func (l *managerListener) OnProviderEnabled(provider string) {
	l.logger.Debug().Str("provider", provider).Msg("Location provider enabled")
}

func (l *managerListener) OnProviderDisabled(provider string) {
	if provider != l.provider {
		return
	}
	l.sink.Close(&ProviderDisabledError{Provider: provider})
}
