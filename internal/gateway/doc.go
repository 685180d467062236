// Package gateway implements device.Transport over MQTT.
//
// tiond does not speak BLE itself. A gateway process near the breezers
// owns the radio and executes requests published on
// tion/gateway/request/{address}:
//
//	{"id": "<uuid>", "op": "write", "address": "AA:BB:CC:DD:EE:01", "properties": {"fan_speed": 4}}
//
// It answers on tion/gateway/response/{id}:
//
//	{"id": "<uuid>", "ok": false, "code": "not_connected", "error": "peer gone"}
//
// The code not_connected maps to device.ErrNotConnected so the handle
// drops its connected flag and the next poll reconnects.
package gateway
