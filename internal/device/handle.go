package device

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// Property names understood by breezers, shared by reads and writes.
const (
	PropState        = "state"
	PropFanSpeed     = "fan_speed"
	PropHeater       = "heater"
	PropHeaterTemp   = "heater_temp"
	PropMode         = "mode"
	PropInTemp       = "in_temp"
	PropOutTemp      = "out_temp"
	PropFilterRemain = "filter_remain"
	PropSound        = "sound"
	PropLight        = "light"
)

// Properties is a loosely typed property map as exchanged with the device.
type Properties map[string]any

// Transport carries device operations to the radio. The BLE wire protocol
// lives behind it; tiond reaches it through an MQTT gateway.
type Transport interface {
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error
	Read(ctx context.Context, address string) (Properties, error)
	Write(ctx context.Context, address string, props Properties) error
}

// Handle is a live connection to one breezer.
//
// Implementations are safe for concurrent use, but callers should not
// issue overlapping writes to the same device.
type Handle interface {
	DeviceID() string
	Kind() Kind
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Get(ctx context.Context) (Properties, error)
	// Set writes the properties the model accepts and ignores the rest.
	// It reports false without error when the device declined the write.
	Set(ctx context.Context, props Properties) (bool, error)
	Connected() bool
}

// Factory builds a handle for a registered device.
type Factory func(d *Device) Handle

// variants maps each model family to the property set it accepts.
// Readable properties are not restricted.
var variants = map[Kind]map[string]bool{}

func init() {
	for kind := range capabilityTable {
		variants[kind] = writableFor(CapabilitiesOf(kind))
	}
}

// writableFor derives the accepted write properties from a capability set.
func writableFor(caps Capabilities) map[string]bool {
	w := map[string]bool{PropState: true, PropSound: true}
	if caps.Has(CapFanControl) {
		w[PropFanSpeed] = true
	}
	if caps.Has(CapHeaterControl) {
		w[PropHeater] = true
	}
	if caps.Has(CapTemperatureControl) {
		w[PropHeaterTemp] = true
	}
	if caps.Has(CapLightControl) {
		w[PropLight] = true
	}
	if caps.Has(CapModeControl) {
		w[PropMode] = true
	}
	return w
}

// Writable reports whether a model family accepts writes to property.
func Writable(kind Kind, property string) bool {
	w, ok := variants[kind]
	if !ok {
		w = variants[KindGeneric]
	}
	return w[property]
}

// NewFactory returns a Factory that builds handles over t.
func NewFactory(t Transport) Factory {
	return func(d *Device) Handle {
		return NewHandle(d, t)
	}
}

// Constructor builds the handle variant for one model family.
type Constructor func(d *Device, t Transport) Handle

// constructors is the closed set of handle variants, keyed by kind.
var constructors = map[Kind]Constructor{
	KindGeneric: variantOf(KindGeneric),
	KindS3:      variantOf(KindS3),
	KindS4:      variantOf(KindS4),
	KindLite:    variantOf(KindLite),
}

// NewHandle builds the variant handle for d. Unknown kinds get the
// generic variant.
func NewHandle(d *Device, t Transport) Handle {
	build, ok := constructors[d.Kind]
	if !ok {
		build = constructors[KindGeneric]
	}
	return build(d, t)
}

// variantOf returns the constructor for kind. Variants share the breezer
// implementation and differ in the properties they accept.
func variantOf(kind Kind) Constructor {
	return func(d *Device, t Transport) Handle {
		return &breezer{
			id:        d.ID,
			address:   d.Address,
			kind:      kind,
			writable:  variants[kind],
			transport: t,
		}
	}
}

type breezer struct {
	id        string
	address   string
	kind      Kind
	writable  map[string]bool
	transport Transport
	connected atomic.Bool
}

func (b *breezer) DeviceID() string { return b.id }
func (b *breezer) Kind() Kind       { return b.kind }
func (b *breezer) Connected() bool  { return b.connected.Load() }

func (b *breezer) Connect(ctx context.Context) error {
	if err := b.transport.Connect(ctx, b.address); err != nil {
		b.connected.Store(false)
		return fmt.Errorf("connecting %s: %w", b.address, err)
	}
	b.connected.Store(true)
	return nil
}

func (b *breezer) Disconnect(ctx context.Context) error {
	b.connected.Store(false)
	if err := b.transport.Disconnect(ctx, b.address); err != nil {
		return fmt.Errorf("disconnecting %s: %w", b.address, err)
	}
	return nil
}

func (b *breezer) Get(ctx context.Context) (Properties, error) {
	props, err := b.transport.Read(ctx, b.address)
	if err != nil {
		b.noteLinkError(err)
		return nil, fmt.Errorf("reading %s: %w", b.address, err)
	}
	return props, nil
}

func (b *breezer) Set(ctx context.Context, props Properties) (bool, error) {
	accepted := make(Properties, len(props))
	for k, v := range props {
		if b.writable[k] {
			accepted[k] = v
		}
	}
	if len(accepted) == 0 {
		return false, fmt.Errorf("%s on %s: %w", b.kind, b.address, ErrUnsupportedProperty)
	}

	if err := b.transport.Write(ctx, b.address, accepted); err != nil {
		b.noteLinkError(err)
		return false, fmt.Errorf("writing %s: %w", b.address, err)
	}
	return true, nil
}

// noteLinkError marks the handle disconnected when the transport reports
// the link is gone, so the next poll reconnects.
func (b *breezer) noteLinkError(err error) {
	if errors.Is(err, ErrNotConnected) {
		b.connected.Store(false)
	}
}
