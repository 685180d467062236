package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/operator"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.msgs = append(f.msgs, published{topic, payload, retained})
	return f.err
}

func (f *fakePublisher) QoS() byte { return 1 }

type point struct {
	measurement string
	deviceID    string
	state       string
	fields      map[string]interface{}
}

type fakeWriter struct {
	points []point
}

func (f *fakeWriter) WriteBreezerStatus(deviceID, state string, fields map[string]interface{}, _ time.Time) {
	f.points = append(f.points, point{"status", deviceID, state, fields})
}

func (f *fakeWriter) WriteScenarioExecution(_ int64, deviceID, command string, success bool, _ time.Time) {
	f.points = append(f.points, point{"execution", deviceID, command, map[string]interface{}{"success": success}})
}

func TestMQTTSink_PublishStatusRetained(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)

	st := operator.DeviceStatus{DeviceID: "AA:BB:CC:DD:EE:01", State: "on", FanSpeed: 3}
	if err := sink.PublishStatus(context.Background(), st); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(pub.msgs))
	}
	m := pub.msgs[0]
	if m.topic != "tion/device/AA:BB:CC:DD:EE:01/state" {
		t.Errorf("topic = %q", m.topic)
	}
	if !m.retained {
		t.Error("status should be retained")
	}

	var got operator.DeviceStatus
	if err := json.Unmarshal(m.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.State != "on" || got.FanSpeed != 3 {
		t.Errorf("payload = %+v", got)
	}
}

func TestMQTTSink_PublishExecution(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)

	err := sink.PublishExecution(context.Background(), automation.Execution{
		ID:         "run-1",
		ScenarioID: 12,
		DeviceID:   "AA:BB:CC:DD:EE:01",
		Command:    "turn_off",
		Success:    true,
	})
	if err != nil {
		t.Fatalf("PublishExecution() error = %v", err)
	}
	m := pub.msgs[0]
	if m.topic != "tion/scenario/12/executed" || m.retained {
		t.Errorf("message = %s retained=%v", m.topic, m.retained)
	}

	var ev map[string]any
	if err := json.Unmarshal(m.payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev["command"] != "turn_off" || ev["success"] != true {
		t.Errorf("event = %v", ev)
	}
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	sink := NewMQTTSink(pub)
	if err := sink.PublishStatus(context.Background(), operator.DeviceStatus{DeviceID: "d"}); err == nil {
		t.Error("publish failure should be returned")
	}
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w)
	ctx := context.Background()

	good := operator.DeviceStatus{DeviceID: "a", State: "on", InTemp: 21, HeaterState: "on", LastUpdated: time.Now()}
	bad := operator.ErrorStatus("b", errors.New("timeout"), time.Now())

	if err := sink.PublishStatus(ctx, good); err != nil {
		t.Fatal(err)
	}
	if err := sink.PublishStatus(ctx, bad); err != nil {
		t.Fatal(err)
	}
	if err := sink.PublishExecution(ctx, automation.Execution{ScenarioID: 1, DeviceID: "a", Command: "turn_on"}); err != nil {
		t.Fatal(err)
	}

	if len(w.points) != 3 {
		t.Fatalf("points = %d, want 3", len(w.points))
	}
	if p := w.points[0]; p.fields["in_temp"] != 21.0 || p.fields["heater_on"] != true || p.fields["up"] != true {
		t.Errorf("good status fields = %v", p.fields)
	}
	if p := w.points[1]; p.state != "error" || p.fields["up"] != false || len(p.fields) != 1 {
		t.Errorf("error status point = %+v", p)
	}
	if p := w.points[2]; p.measurement != "execution" {
		t.Errorf("execution point = %+v", p)
	}
}
