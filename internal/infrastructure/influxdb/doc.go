// Package influxdb stores breezer telemetry in InfluxDB v2.
//
// Every polled status becomes a breezer_status point tagged with the
// device id and state; every scenario run becomes a scenario_execution
// point. Writes are batched and non-blocking (batch_size and
// flush_interval in config.yaml).
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time series
//	}
//	defer client.Close()
//
//	client.WriteBreezerStatus("AA:BB:CC:DD:EE:01", "on",
//	    map[string]interface{}{"in_temp": 21.5}, time.Now())
package influxdb
