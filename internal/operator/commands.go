package operator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
)

// Setter ranges.
const (
	MinFanSpeed   = 0
	MaxFanSpeed   = 6
	MinHeaterTemp = 10
	MaxHeaterTemp = 30
)

// SetDeviceState switches a device "on" or "off".
func (o *Operator) SetDeviceState(ctx context.Context, id, state string) (bool, error) {
	if err := oneOf(device.PropState, state, "on", "off"); err != nil {
		return false, err
	}
	return o.command(ctx, id, device.Properties{device.PropState: state})
}

// SetFanSpeed sets the fan speed, 0 to 6.
func (o *Operator) SetFanSpeed(ctx context.Context, id string, speed int) (bool, error) {
	if speed < MinFanSpeed || speed > MaxFanSpeed {
		return false, fmt.Errorf("%w: fan speed %d outside %d..%d", ErrValidation, speed, MinFanSpeed, MaxFanSpeed)
	}
	return o.command(ctx, id, device.Properties{device.PropFanSpeed: speed})
}

// SetHeaterTemp sets the heater target temperature, 10 to 30 °C.
func (o *Operator) SetHeaterTemp(ctx context.Context, id string, temp int) (bool, error) {
	if temp < MinHeaterTemp || temp > MaxHeaterTemp {
		return false, fmt.Errorf("%w: heater temperature %d outside %d..%d", ErrValidation, temp, MinHeaterTemp, MaxHeaterTemp)
	}
	return o.command(ctx, id, device.Properties{device.PropHeaterTemp: temp})
}

// SetHeaterState sets the heater state. The value is passed through as is.
func (o *Operator) SetHeaterState(ctx context.Context, id, state string) (bool, error) {
	return o.command(ctx, id, device.Properties{device.PropHeater: state})
}

// SetMode selects the air intake mode, e.g. "outside" or "recirculation".
// The device decides which values it accepts.
func (o *Operator) SetMode(ctx context.Context, id, mode string) (bool, error) {
	return o.command(ctx, id, device.Properties{device.PropMode: mode})
}

// SetSound sets the button sound, usually "on" or "off".
func (o *Operator) SetSound(ctx context.Context, id, state string) (bool, error) {
	return o.command(ctx, id, device.Properties{device.PropSound: state})
}

// SetLight sets the indicator light, usually "on" or "off".
func (o *Operator) SetLight(ctx context.Context, id, state string) (bool, error) {
	return o.command(ctx, id, device.Properties{device.PropLight: state})
}

// SetProperty dispatches a property write by name to the matching setter.
// Numeric values may arrive as any JSON number type.
func (o *Operator) SetProperty(ctx context.Context, id, property string, value any) (bool, error) {
	switch property {
	case device.PropFanSpeed, device.PropHeaterTemp:
		f, ok := automation.ToFloat(value)
		if !ok || f != float64(int(f)) {
			return false, fmt.Errorf("%w: %s must be an integer", ErrValidation, property)
		}
		if property == device.PropFanSpeed {
			return o.SetFanSpeed(ctx, id, int(f))
		}
		return o.SetHeaterTemp(ctx, id, int(f))
	}

	s, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a string", ErrValidation, property)
	}
	switch property {
	case device.PropState:
		return o.SetDeviceState(ctx, id, s)
	case device.PropHeater:
		return o.SetHeaterState(ctx, id, s)
	case device.PropMode:
		return o.SetMode(ctx, id, s)
	case device.PropSound:
		return o.SetSound(ctx, id, s)
	case device.PropLight:
		return o.SetLight(ctx, id, s)
	}
	return false, fmt.Errorf("%w: unknown property %q", ErrValidation, property)
}

// command writes props to a loaded device. A device-side failure is
// logged and reported as false.
func (o *Operator) command(ctx context.Context, id string, props device.Properties) (bool, error) {
	h, ok := o.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	ok, err := o.write(ctx, id, h, props)
	for prop := range props {
		o.metrics.CommandResult(prop, ok)
	}
	if err != nil {
		o.logger.Error("device command failed", "device_id", id, "properties", props, "error", err)
		return false, nil
	}
	if ok {
		o.cache.Invalidate(id)
	}
	return ok, nil
}

// write sends props through the device's circuit breaker.
func (o *Operator) write(ctx context.Context, id string, h device.Handle, props device.Properties) (bool, error) {
	res, err := o.breaker(id).Execute(func() (interface{}, error) {
		ioCtx, cancel := o.ioContext(ctx)
		defer cancel()
		return h.Set(ioCtx, props)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (o *Operator) breaker(id string) *gobreaker.CircuitBreaker {
	o.breakerMu.Lock()
	defer o.breakerMu.Unlock()

	if cb, ok := o.breakers[id]; ok {
		return cb
	}

	failures := uint32(o.breakerCfg.Failures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    o.breakerCfg.Interval,
		Timeout:     o.breakerCfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// A declined property says nothing about the link.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, device.ErrUnsupportedProperty)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("device breaker state changed", "device_id", name, "from", from.String(), "to", to.String())
			o.metrics.BreakerState(name, to.String())
		},
	})
	o.breakers[id] = cb
	return cb
}

func oneOf(property, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q not one of %v", ErrValidation, property, value, allowed)
}
