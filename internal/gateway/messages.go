package gateway

import "github.com/shockzort/tion-core/internal/device"

// Op is a device operation understood by the gateway.
type Op string

const (
	OpConnect    Op = "connect"
	OpDisconnect Op = "disconnect"
	OpRead       Op = "read"
	OpWrite      Op = "write"
)

// Error codes the gateway may return.
const (
	CodeNotConnected = "not_connected"
	CodeNotFound     = "not_found"
	CodeBusy         = "busy"
)

// Request is published to tion/gateway/request/{address}.
type Request struct {
	ID         string            `json:"id"`
	Op         Op                `json:"op"`
	Address    string            `json:"address"`
	Properties device.Properties `json:"properties,omitempty"`
}

// Response is published by the gateway to tion/gateway/response/{id}.
type Response struct {
	ID         string            `json:"id"`
	OK         bool              `json:"ok"`
	Code       string            `json:"code,omitempty"`
	Error      string            `json:"error,omitempty"`
	Properties device.Properties `json:"properties,omitempty"`
}
