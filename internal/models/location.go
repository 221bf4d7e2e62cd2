package models

import (
	"time"
)

// Location represents a geographical location with associated metadata
type Location struct {
	DeviceID  string    `json:"device_id"`
	Source    string    `json:"source"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude,omitempty"`
	Accuracy  float64   `json:"accuracy"`
	Speed     float64   `json:"speed,omitempty"`
}
