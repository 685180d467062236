package device

// Capability is a named feature a model family may support.
type Capability string

const (
	CapFanControl         Capability = "fan_control"
	CapHeaterControl      Capability = "heater_control"
	CapTemperatureControl Capability = "temperature_control"
	CapLightControl       Capability = "light_control"
	CapModeControl        Capability = "mode_control"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapFanControl,
	CapHeaterControl,
	CapTemperatureControl,
	CapLightControl,
	CapModeControl,
}

// Capabilities maps capability name to support. A missing key means false.
type Capabilities map[Capability]bool

// Has reports whether c is supported.
func (c Capabilities) Has(capability Capability) bool {
	return c[capability]
}

// capabilityTable is the declarative per-kind feature matrix. Handle
// variants never consult it; the automation capability gate and the
// writable property sets are derived from it.
var capabilityTable = map[Kind][]Capability{
	KindGeneric: {CapFanControl},
	KindS3:      {CapFanControl, CapHeaterControl, CapTemperatureControl},
	KindS4:      {CapFanControl, CapHeaterControl, CapTemperatureControl, CapModeControl},
	KindLite:    {CapFanControl, CapLightControl},
}

// CapabilitiesOf returns the full capability map for a kind, with every
// capability present as true or false. Unknown kinds get the generic set.
func CapabilitiesOf(kind Kind) Capabilities {
	supported, ok := capabilityTable[kind]
	if !ok {
		supported = capabilityTable[KindGeneric]
	}
	caps := make(Capabilities, len(AllCapabilities))
	for _, c := range AllCapabilities {
		caps[c] = false
	}
	for _, c := range supported {
		caps[c] = true
	}
	return caps
}
