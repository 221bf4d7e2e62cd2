package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"googlemaps.github.io/maps"
)

// MockGeolocator is a mock implementation of geolocation.Geolocator
type MockGeolocator struct {
	mock.Mock
}

func (m *MockGeolocator) Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error) {
	args := m.Called(ctx, r)
	res, _ := args.Get(0).(*maps.GeolocationResult)
	return res, args.Error(1)
}

// MockSignalScanner is a mock implementation of geolocation.SignalScanner
type MockSignalScanner struct {
	mock.Mock
}

func (m *MockSignalScanner) WiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	args := m.Called(ctx)
	aps, _ := args.Get(0).([]maps.WiFiAccessPoint)
	return aps, args.Error(1)
}

func (m *MockSignalScanner) CellTowers(ctx context.Context) ([]maps.CellTower, error) {
	args := m.Called(ctx)
	towers, _ := args.Get(0).([]maps.CellTower)
	return towers, args.Error(1)
}
