package mocks

import "github.com/stretchr/testify/mock"

// MockPublisher is a mock implementation of the services Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	args := m.Called(topic, qos, retained, payload)
	return args.Error(0)
}
