package location

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

// looperDepth is the callback queue depth of the per-subscription looper.
const looperDepth = 8

// FusedAdapter streams fixes from the vendor-provided fused location client.
type FusedAdapter struct {
	perms  platform.PermissionChecker
	client platform.FusedLocationClient
	logger zerolog.Logger

	last stream.Latest[platform.Fix]
	subs *stream.Group
}

// NewFusedAdapter builds an adapter over the context's fused client.
func NewFusedAdapter(pctx platform.Context, logger zerolog.Logger) (*FusedAdapter, error) {
	client := pctx.FusedLocationClient()
	if client == nil {
		return nil, ErrServiceUnavailable
	}
	return &FusedAdapter{
		perms:  pctx.Permissions(),
		client: client,
		logger: logger.With().Str("adapter", "fused_location").Logger(),
		subs:   stream.NewGroup(),
	}, nil
}

// LastKnown returns the most recent fix seen by any subscription, or nil.
func (a *FusedAdapter) LastKnown() *platform.Fix {
	return a.last.Load()
}

// LastKnownFix asks the platform for its cached fix and emits it as the only
// element of the returned stream.
func (a *FusedAdapter) LastKnownFix(ctx context.Context) *stream.Stream[platform.Fix] {
	return stream.Open(ctx, func(ctx context.Context, sink stream.Sink[platform.Fix]) (stream.Teardown, error) {
		if err := checkPermission(a.perms, platform.FineLocation); err != nil {
			return nil, err
		}

		fix, err := a.client.LastLocation(ctx)
		if err != nil {
			return nil, err
		}
		if fix == nil {
			return nil, ErrEmptyResult
		}

		a.last.Store(*fix)
		sink.Emit(*fix)
		sink.Close(nil)
		return nil, nil
	}, stream.WithLogger(a.logger), stream.WithGroup(a.subs))
}

// Updates registers for continuous fixes at the requested priority. The stream
// never completes on its own; cancel ctx or Close it to unregister.
func (a *FusedAdapter) Updates(ctx context.Context, req platform.LocationRequest) *stream.Stream[platform.Fix] {
	return stream.Open(ctx, func(ctx context.Context, sink stream.Sink[platform.Fix]) (stream.Teardown, error) {
		want := platform.CoarseLocation
		if req.Priority == platform.PriorityHighAccuracy {
			want = platform.FineLocation
		}
		if err := checkPermission(a.perms, want); err != nil {
			return nil, err
		}

		looper := platform.NewLooper("fused-location", looperDepth)
		registered := false
		defer func() {
			if !registered {
				looper.Quit()
			}
		}()

		cb := &fusedCallback{sink: sink, last: &a.last}
		if err := a.client.RequestLocationUpdates(req, cb, looper); err != nil {
			return nil, err
		}
		registered = true

		a.logger.Debug().
			Str("priority", req.Priority.String()).
			Dur("interval", req.Interval).
			Msg("Registered fused location callback")

		return func() {
			if err := a.client.RemoveLocationUpdates(cb); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to remove fused location callback")
			}
			looper.Quit()
		}, nil
	}, stream.WithLogger(a.logger), stream.WithGroup(a.subs))
}

// Subscriptions returns the number of open streams.
func (a *FusedAdapter) Subscriptions() int {
	return a.subs.Len()
}

// Close terminates every open stream of this adapter.
func (a *FusedAdapter) Close() {
	a.subs.CloseAll()
}

type fusedCallback struct {
	sink stream.Sink[platform.Fix]
	last *stream.Latest[platform.Fix]
}

func (c *fusedCallback) OnLocationResult(result platform.LocationResult) {
	for _, fix := range result.Locations {
		// Late deliveries queued before teardown must not touch the cache.
		if !c.sink.Active() {
			return
		}
		c.last.Store(fix)
		if !c.sink.Emit(fix) {
			return
		}
	}
}
