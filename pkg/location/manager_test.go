package location_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/geosense/internal/mocks"
	"github.com/benmeehan/geosense/pkg/location"
	"github.com/benmeehan/geosense/pkg/platform"
)

func newManagerAdapter(t *testing.T, grants platform.Grants) (*location.ManagerAdapter, *mocks.MockLocationManager) {
	t.Helper()
	manager := new(mocks.MockLocationManager)
	a, err := location.NewManagerAdapter(&platform.Host{Grants: grants, Manager: manager}, zerolog.Nop())
	require.NoError(t, err)
	return a, manager
}

type registration struct {
	listeners *mocks.Capture[platform.LocationListener]
	loopers   *mocks.Capture[*platform.Looper]
}

func expectRegistration(m *mocks.MockLocationManager, provider interface{}, minTime interface{}, minDistance interface{}) registration {
	r := registration{
		listeners: mocks.NewCapture[platform.LocationListener](3),
		loopers:   mocks.NewCapture[*platform.Looper](4),
	}
	m.On("RequestLocationUpdates", provider, minTime, minDistance, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			r.loopers.Run(args)
			r.listeners.Run(args)
		}).
		Return(nil)
	m.On("RemoveUpdates", mock.Anything).Return(nil)
	return r
}

func TestNewManagerAdapter_NoManager(t *testing.T) {
	_, err := location.NewManagerAdapter(&platform.Host{}, zerolog.Nop())
	assert.ErrorIs(t, err, location.ErrServiceUnavailable)
}

func TestManagerAdapter_Updates_MissingPermission(t *testing.T) {
	tests := []struct {
		provider string
		want     platform.Permission
	}{
		{platform.GPSProvider, platform.FineLocation},
		{platform.NetworkProvider, platform.CoarseLocation},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			a, manager := newManagerAdapter(t, platform.NewGrants())

			s := a.Updates(context.Background(), time.Second, 10, tt.provider)
			_, ok := <-s.Values()
			assert.False(t, ok)

			var permErr *location.MissingPermissionError
			require.ErrorAs(t, s.Err(), &permErr)
			assert.Equal(t, tt.want, permErr.Permission)
			manager.AssertNotCalled(t, "RequestLocationUpdates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestManagerAdapter_Updates_CoarseIsEnoughForGPS(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.CoarseLocation))
	reg := expectRegistration(manager, platform.GPSProvider, time.Second, 5.0)

	s := a.Updates(context.Background(), time.Second, 5, platform.GPSProvider)
	reg.listeners.Wait(t, 1)
	s.Close()

	assert.NoError(t, s.Err())
}

func TestManagerAdapter_Updates_ForwardsAndUnregisters(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	reg := expectRegistration(manager, platform.GPSProvider, 2*time.Second, 15.0)

	s := a.Updates(context.Background(), 2*time.Second, 15, platform.GPSProvider)
	l := reg.listeners.Wait(t, 1)
	looper := reg.loopers.Wait(t, 1)

	looper.Post(func() {
		l.OnProviderEnabled(platform.GPSProvider)
		l.OnLocationChanged(berlin)
		l.OnLocationChanged(paris)
	})

	assert.Equal(t, berlin, <-s.Values())
	assert.Equal(t, paris, <-s.Values())
	require.NotNil(t, a.LastKnown())
	assert.Equal(t, paris, *a.LastKnown())

	s.Close()
	manager.AssertNumberOfCalls(t, "RemoveUpdates", 1)
	manager.AssertCalled(t, "RemoveUpdates", l)
}

func TestManagerAdapter_Updates_ProviderDisabled(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	reg := expectRegistration(manager, platform.GPSProvider, mock.Anything, mock.Anything)

	s := a.Updates(context.Background(), 0, 0, platform.GPSProvider)
	l := reg.listeners.Wait(t, 1)
	looper := reg.loopers.Wait(t, 1)

	looper.Post(func() {
		l.OnLocationChanged(berlin)
		l.OnProviderDisabled(platform.NetworkProvider) // other providers are ignored
		l.OnProviderDisabled(platform.GPSProvider)
	})

	assert.Equal(t, berlin, <-s.Values())
	_, ok := <-s.Values()
	assert.False(t, ok)

	var disabled *location.ProviderDisabledError
	require.ErrorAs(t, s.Err(), &disabled)
	assert.Equal(t, platform.GPSProvider, disabled.Provider)
	manager.AssertNumberOfCalls(t, "RemoveUpdates", 1)
	manager.AssertCalled(t, "RemoveUpdates", l)
}

func TestManagerAdapter_Updates_RegistrationError(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.CoarseLocation))
	unsupported := errors.New("provider \"network\" not supported")
	manager.On("RequestLocationUpdates", platform.NetworkProvider, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(unsupported)

	s := a.Updates(context.Background(), time.Second, 0, platform.NetworkProvider)

	assert.ErrorIs(t, s.Err(), unsupported)
	manager.AssertNotCalled(t, "RemoveUpdates", mock.Anything)
}

func TestManagerAdapter_SingleFix(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	reg := expectRegistration(manager, platform.GPSProvider, time.Duration(0), 0.0)

	go func() {
		l := reg.listeners.Wait(t, 1)
		reg.loopers.Wait(t, 1).Post(func() {
			l.OnLocationChanged(paris)
			l.OnLocationChanged(berlin)
		})
	}()

	fix, err := a.SingleFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paris, fix)
	require.NotNil(t, a.LastKnown())
	manager.AssertNumberOfCalls(t, "RemoveUpdates", 1)
}

func TestManagerAdapter_SingleFix_ProviderDisabled(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	reg := expectRegistration(manager, platform.GPSProvider, mock.Anything, mock.Anything)

	go func() {
		l := reg.listeners.Wait(t, 1)
		reg.loopers.Wait(t, 1).Post(func() { l.OnProviderDisabled(platform.GPSProvider) })
	}()

	_, err := a.SingleFix(context.Background())
	var disabled *location.ProviderDisabledError
	assert.ErrorAs(t, err, &disabled)
	assert.Nil(t, a.LastKnown())
}

func TestManagerAdapter_Updates_RegistrationPanic(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	loopers := mocks.NewCapture[*platform.Looper](4)
	manager.On("RequestLocationUpdates", platform.GPSProvider, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			loopers.Run(args)
			panic("gnss hal crashed")
		}).
		Return(nil)

	s := a.Updates(context.Background(), time.Second, 0, platform.GPSProvider)

	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "panicked")
	manager.AssertNotCalled(t, "RemoveUpdates", mock.Anything)
	assert.False(t, loopers.Wait(t, 1).Post(func() {}), "looper should be released")
}

func TestManagerAdapter_Updates_LateFixAfterClose(t *testing.T) {
	a, manager := newManagerAdapter(t, platform.NewGrants(platform.FineLocation))
	listeners := mocks.NewCapture[platform.LocationListener](3)
	loopers := mocks.NewCapture[*platform.Looper](4)
	manager.On("RequestLocationUpdates", platform.GPSProvider, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			loopers.Run(args)
			listeners.Run(args)
		}).
		Return(nil)
	removed := make(chan struct{})
	manager.On("RemoveUpdates", mock.Anything).
		Run(func(mock.Arguments) { close(removed) }).
		Return(nil)

	s := a.Updates(context.Background(), time.Second, 0, platform.GPSProvider)
	l := listeners.Wait(t, 1)
	looper := loopers.Wait(t, 1)

	gate := make(chan struct{})
	looper.Post(func() { <-gate })
	looper.Post(func() { l.OnLocationChanged(berlin) })

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	<-removed
	close(gate)
	<-closed

	_, ok := <-s.Values()
	assert.False(t, ok)
	assert.Nil(t, a.LastKnown())
}
