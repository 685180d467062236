package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatus    = "breezer_status"
	MeasurementExecution = "scenario_execution"
)

// WriteBreezerStatus records one polled reading. The device state and any
// error go in as tags so dashboards can filter on them; numeric readings
// are fields.
func (c *Client) WriteBreezerStatus(deviceID, state string, fields map[string]interface{}, at time.Time) {
	tags := map[string]string{
		"device_id": deviceID,
		"state":     state,
	}
	c.WritePointWithTime(MeasurementStatus, tags, fields, at)
}

// WriteScenarioExecution records one scenario run.
func (c *Client) WriteScenarioExecution(scenarioID int64, deviceID, command string, success bool, at time.Time) {
	tags := map[string]string{
		"scenario_id": strconv.FormatInt(scenarioID, 10),
		"device_id":   deviceID,
		"command":     command,
	}
	fields := map[string]interface{}{
		"success": success,
	}
	c.WritePointWithTime(MeasurementExecution, tags, fields, at)
}

// WritePointWithTime writes a point at the given time. Points written
// while disconnected are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
