// Package logging provides structured logging for tiond.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting", "devices", n)
//	logger.With("component", "operator").Warn("connect failed", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
