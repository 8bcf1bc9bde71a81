// Package logging provides a structured logging system for the gateway.
//
// Logging is subsystem-tagged and built on log/slog. Every log call names
// the emitting subsystem ("Aggregator", "Scheduler", "StdioClient", ...) so
// operators can filter by component.
//
// # Usage
//
//	import "muster/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Bootstrap", "gateway starting up")
//	logging.Debug("Config", "loaded configuration from %s", configPath)
//	logging.Warn("Scheduler", "server check overran its interval")
//	logging.Error("StdioClient", err, "failed to initialize %s", command)
//
// Security-sensitive events go through Audit, which always logs at INFO
// with an "[AUDIT]" prefix so log aggregation can filter them separately.
package logging
