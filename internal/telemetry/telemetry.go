package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
	"github.com/shockzort/tion-core/internal/infrastructure/mqtt"
	"github.com/shockzort/tion-core/internal/operator"
)

// Publisher is the MQTT publish surface used by MQTTSink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// MQTTSink publishes each device status as a retained message on
// tion/device/{id}/state and each scenario run on
// tion/scenario/{id}/executed.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink over pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// PublishStatus implements operator.Sink.
func (s *MQTTSink) PublishStatus(_ context.Context, status operator.DeviceStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return s.pub.Publish(s.topics.DeviceState(status.DeviceID), payload, s.pub.QoS(), true)
}

// executionEvent is the wire form of a scenario run.
type executionEvent struct {
	ID         string    `json:"id"`
	ScenarioID int64     `json:"scenario_id"`
	DeviceID   string    `json:"device_id"`
	Command    string    `json:"command"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// PublishExecution implements operator.Sink.
func (s *MQTTSink) PublishExecution(_ context.Context, e automation.Execution) error {
	payload, err := json.Marshal(executionEvent{
		ID:         e.ID,
		ScenarioID: e.ScenarioID,
		DeviceID:   e.DeviceID,
		Command:    string(e.Command),
		Success:    e.Success,
		Detail:     e.Detail,
		ExecutedAt: e.ExecutedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding execution: %w", err)
	}
	return s.pub.Publish(s.topics.ScenarioExecuted(e.ScenarioID), payload, s.pub.QoS(), false)
}

// PointWriter is the InfluxDB write surface used by InfluxSink.
type PointWriter interface {
	WriteBreezerStatus(deviceID, state string, fields map[string]interface{}, at time.Time)
	WriteScenarioExecution(scenarioID int64, deviceID, command string, success bool, at time.Time)
}

// InfluxSink turns statuses and executions into InfluxDB points.
// Error statuses are written with an "error" state and no readings.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink over w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// PublishStatus implements operator.Sink.
func (s *InfluxSink) PublishStatus(_ context.Context, status operator.DeviceStatus) error {
	at := status.LastUpdated
	if at.IsZero() {
		at = time.Now()
	}

	if !status.OK() {
		s.w.WriteBreezerStatus(status.DeviceID, status.State, map[string]interface{}{"up": false}, at)
		return nil
	}

	fields := map[string]interface{}{
		"up":                    true,
		device.PropFanSpeed:     status.FanSpeed,
		device.PropHeaterTemp:   status.HeaterTemp,
		device.PropInTemp:       status.InTemp,
		device.PropOutTemp:      status.OutTemp,
		device.PropFilterRemain: status.FilterRemain,
		"heater_on":             status.HeaterState == "on",
	}
	s.w.WriteBreezerStatus(status.DeviceID, status.State, fields, at)
	return nil
}

// PublishExecution implements operator.Sink.
func (s *InfluxSink) PublishExecution(_ context.Context, e automation.Execution) error {
	s.w.WriteScenarioExecution(e.ScenarioID, e.DeviceID, string(e.Command), e.Success, e.ExecutedAt)
	return nil
}

var (
	_ operator.Sink = (*MQTTSink)(nil)
	_ operator.Sink = (*InfluxSink)(nil)
)
