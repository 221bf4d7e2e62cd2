package models

import "time"

// Bearing is a compass heading in degrees clockwise from magnetic north.
type Bearing struct {
	DeviceID  string    `json:"device_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Azimuth   float64   `json:"azimuth"`
	Accuracy  string    `json:"accuracy"`
}
