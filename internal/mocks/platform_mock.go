package mocks

import (
	"context"
	"time"

	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/stretchr/testify/mock"
)

// MockFusedLocationClient is a mock implementation of platform.FusedLocationClient
type MockFusedLocationClient struct {
	mock.Mock
}

func (m *MockFusedLocationClient) LastLocation(ctx context.Context) (*platform.Fix, error) {
	args := m.Called(ctx)
	fix, _ := args.Get(0).(*platform.Fix)
	return fix, args.Error(1)
}

func (m *MockFusedLocationClient) RequestLocationUpdates(req platform.LocationRequest, cb platform.LocationCallback, looper *platform.Looper) error {
	args := m.Called(req, cb, looper)
	return args.Error(0)
}

func (m *MockFusedLocationClient) RemoveLocationUpdates(cb platform.LocationCallback) error {
	args := m.Called(cb)
	return args.Error(0)
}

// MockLocationManager is a mock implementation of platform.LocationManager
type MockLocationManager struct {
	mock.Mock
}

func (m *MockLocationManager) RequestLocationUpdates(provider string, minTime time.Duration, minDistance float64,
	l platform.LocationListener, looper *platform.Looper) error {
	args := m.Called(provider, minTime, minDistance, l, looper)
	return args.Error(0)
}

func (m *MockLocationManager) RemoveUpdates(l platform.LocationListener) error {
	args := m.Called(l)
	return args.Error(0)
}

// MockSensorManager is a mock implementation of platform.SensorManager
type MockSensorManager struct {
	mock.Mock
}

func (m *MockSensorManager) DefaultSensor(t platform.SensorType) (platform.Sensor, bool) {
	args := m.Called(t)
	return args.Get(0).(platform.Sensor), args.Bool(1)
}

func (m *MockSensorManager) RegisterListener(l platform.SensorEventListener, s platform.Sensor, rate platform.SamplingRate) bool {
	args := m.Called(l, s, rate)
	return args.Bool(0)
}

func (m *MockSensorManager) UnregisterListener(l platform.SensorEventListener, s platform.Sensor) {
	m.Called(l, s)
}

// MockDisplay is a mock implementation of platform.Display
type MockDisplay struct {
	mock.Mock
}

func (m *MockDisplay) Rotation() platform.Rotation {
	args := m.Called()
	return args.Get(0).(platform.Rotation)
}
