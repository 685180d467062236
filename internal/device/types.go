package device

import (
	"slices"
	"strings"
	"time"
)

// Kind is the breezer model family. It selects the handle variant and the
// capability set.
type Kind string

const (
	// KindGeneric is the fallback for unrecognised Tion devices.
	KindGeneric Kind = "Tion"
	KindS3      Kind = "TionS3"
	KindS4      Kind = "TionS4"
	KindLite    Kind = "TionLite"
)

// advertisedPrefix is stripped from BLE advertisement names when deriving
// a display name.
const advertisedPrefix = "Tion_Breezer_"

// Known reports whether k is one of the supported model families.
func (k Kind) Known() bool {
	switch k {
	case KindGeneric, KindS3, KindS4, KindLite:
		return true
	}
	return false
}

// Model returns the short model label, e.g. "S3" for TionS3.
func (k Kind) Model() string {
	return strings.TrimPrefix(string(k), string(KindGeneric))
}

// KindFromName infers the model family from a BLE advertisement name such
// as "Tion_Breezer_S3". Unrecognised names map to KindGeneric.
func KindFromName(name string) Kind {
	switch {
	case strings.Contains(name, "S3"):
		return KindS3
	case strings.Contains(name, "Lite"):
		return KindLite
	case strings.Contains(name, "S4"):
		return KindS4
	default:
		return KindGeneric
	}
}

// DisplayName turns "Tion_Breezer_living_room" into "Living Room".
func DisplayName(advertised string) string {
	words := strings.Fields(strings.ReplaceAll(strings.TrimPrefix(advertised, advertisedPrefix), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// Device is a registered breezer.
// This matches the devices table in migrations/20260301_120000_initial_schema.up.sql.
type Device struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    Kind    `json:"kind"`
	Address string  `json:"address"` // BLE MAC, upper case
	Model   *string `json:"model,omitempty"`
	Room    *string `json:"room,omitempty"`

	IsActive bool `json:"is_active"`
	IsPaired bool `json:"is_paired"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connectable reports whether the device should be held connected:
// active and paired.
func (d *Device) Connectable() bool {
	return d.IsActive && d.IsPaired
}

// DeepCopy returns an independent copy for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.Model != nil {
		m := *d.Model
		cpy.Model = &m
	}
	if d.Room != nil {
		r := *d.Room
		cpy.Room = &r
	}
	return &cpy
}

// Group is a named set of devices, e.g. all breezers in the bedrooms.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DeviceIDs []string  `json:"device_ids"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether deviceID is a member of the group.
func (g *Group) Contains(deviceID string) bool {
	return slices.Contains(g.DeviceIDs, deviceID)
}

// DeepCopy returns an independent copy of the group.
func (g *Group) DeepCopy() *Group {
	if g == nil {
		return nil
	}
	cpy := *g
	cpy.DeviceIDs = slices.Clone(g.DeviceIDs)
	return &cpy
}
