// Package telemetry provides observability instrumentation for empack.
//
// It bundles structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind small wrappers so the build and override
// pipelines can instrument themselves without carrying vendor types around.
//
// Initialize at startup:
//
//	logger, err := telemetry.NewLogger(cfg.Logging)
//	tracer, err := telemetry.NewTracer(cfg.Tracing, "empack", version)
//	metrics, err := telemetry.NewMetrics(cfg.Metrics)
//
// Component loggers carry a stable "component" field:
//
//	log := logger.NewComponentLogger("scenario").WithRunID(runID)
//	log.Infof("building package %q", name)
//
// Tracing and metrics are disabled by default; a one-shot batch run only
// pays for what the configuration turns on.
package telemetry
