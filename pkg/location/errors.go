package location

import (
	"errors"
	"fmt"

	"github.com/benmeehan/geosense/pkg/platform"
)

var (
	// ErrEmptyResult is returned when the platform has no cached fix.
	ErrEmptyResult = errors.New("location: platform returned no fix")
	// ErrServiceUnavailable is returned when the context offers no matching location service.
	ErrServiceUnavailable = errors.New("location: service unavailable on this host")
)

// MissingPermissionError terminates a subscription when the host has not
// granted location access.
type MissingPermissionError struct {
	Permission platform.Permission
}

func (e *MissingPermissionError) Error() string {
	return fmt.Sprintf("location: missing permission %s", e.Permission)
}

// ProviderDisabledError terminates a manager subscription whose provider went away.
type ProviderDisabledError struct {
	Provider string
}

func (e *ProviderDisabledError) Error() string {
	return fmt.Sprintf("location: provider %q disabled", e.Provider)
}

// checkPermission passes if fine or coarse location is granted. Otherwise it
// reports the permission the caller needs most.
func checkPermission(perms platform.PermissionChecker, want platform.Permission) error {
	if perms.Granted(platform.FineLocation) || perms.Granted(platform.CoarseLocation) {
		return nil
	}
	return &MissingPermissionError{Permission: want}
}
