// Package api implements tiond's ops HTTP surface.
//
// Endpoints:
//
//	GET  /healthz                              database and MQTT health
//	GET  /metrics                              Prometheus exposition
//	GET  /api/v1/devices                       active devices and handle state
//	GET  /api/v1/devices/{id}/status           cached status (?refresh=true reads the device)
//	POST /api/v1/devices/{id}/commands         {"property": "fan_speed", "value": 3}
//	POST /api/v1/devices/{id}/reconnect        drop and reload the handle
//	POST /api/v1/scenarios/{id}/execute        run a scenario action now
//	GET  /api/v1/scenarios/{id}/executions     execution history (?limit=)
//
// Errors are JSON objects with status, code and message. A device that is
// registered but has no live handle answers 409; a device that failed the
// operation answers 502.
//
// The server has no authentication and binds to 127.0.0.1 by default.
package api
