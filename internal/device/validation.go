package device

import (
	"fmt"
	"net"
	"strings"
)

const maxNameLength = 100

// NormalizeAddress validates a BLE MAC address and returns it upper case
// with colon separators.
func NormalizeAddress(address string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(address))
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToUpper(hw.String()), nil
}

// ValidateDevice checks a device before persistence and normalises its
// address in place.
func ValidateDevice(d *Device) error {
	name := strings.TrimSpace(d.Name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidDevice, maxNameLength)
	}
	if !d.Kind.Known() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	addr, err := NormalizeAddress(d.Address)
	if err != nil {
		return err
	}
	d.Name = name
	d.Address = addr
	return nil
}

// ValidateGroup checks a group before persistence.
func ValidateGroup(g *Group) error {
	name := strings.TrimSpace(g.Name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidGroup, maxNameLength)
	}
	seen := make(map[string]bool, len(g.DeviceIDs))
	for _, id := range g.DeviceIDs {
		if id == "" {
			return fmt.Errorf("%w: empty device id", ErrInvalidGroup)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate device %q", ErrInvalidGroup, id)
		}
		seen[id] = true
	}
	g.Name = name
	return nil
}
