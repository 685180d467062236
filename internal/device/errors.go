package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID or
	// address is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidAddress is returned when a BLE MAC address is malformed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidKind is returned for an unrecognised model family.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrGroupNotFound is returned when a group ID does not exist.
	ErrGroupNotFound = errors.New("device: group not found")

	// ErrInvalidGroup is returned when group validation fails.
	ErrInvalidGroup = errors.New("device: invalid group")

	// ErrNotConnected is returned by a handle whose link is down.
	ErrNotConnected = errors.New("device: not connected")

	// ErrUnsupportedProperty is returned when a write carries no property
	// the model can accept.
	ErrUnsupportedProperty = errors.New("device: unsupported property")
)
