package identity

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/host"

	"github.com/benmeehan/geosense/pkg/file"
)

// Identity holds the device's unique identifier and other metadata.
type Identity struct {
	ID       string          `json:"device_id,omitempty"`
	Name     string          `json:"device_name,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	SaveDeviceID(deviceID string) error
	GetDeviceID() string
	GetDeviceIdentity() *Identity
}

// DeviceInfo manages the device identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
	hostID         func() (string, error)
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		hostID:         host.HostID,
	}
}

// LoadDeviceInfo reads the identity file. A missing file or empty id is
// replaced by the host id, or a random UUID when the host has none, and the
// result is written back so the id stays stable across restarts.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil {
		d.Identity = Identity{}
	}
	if d.Identity.ID != "" {
		return nil
	}

	id, herr := d.hostID()
	id = strings.TrimSpace(id)
	if herr != nil || id == "" {
		id = uuid.NewString()
	}
	return d.SaveDeviceID(id)
}

// GetDeviceIdentity returns the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}

// SaveDeviceID updates the device ID in the Identity field and writes it back to the file.
func (d *DeviceInfo) SaveDeviceID(deviceID string) error {
	d.Identity.ID = deviceID
	return d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity)
}
