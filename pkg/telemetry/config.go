package telemetry

// Config contains the telemetry configuration for empack.
type Config struct {
	// ServiceName is the name of the service for telemetry identification.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing contains tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=console json"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `yaml:"output" envconfig:"LOG_OUTPUT"`
}

// TracingConfig configures tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `yaml:"enabled" envconfig:"TRACING_ENABLED"`

	// Exporter specifies the trace exporter (stdout, none).
	Exporter string `yaml:"exporter" envconfig:"TRACING_EXPORTER" validate:"omitempty,oneof=stdout none"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `yaml:"sampling_rate" envconfig:"TRACING_SAMPLING_RATE" validate:"gte=0,lte=1"`
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `yaml:"enabled" envconfig:"METRICS_ENABLED"`

	// Namespace is the metrics namespace prefix.
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`
}

// DefaultConfig returns a telemetry configuration with sensible defaults
// for one-shot batch runs.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "empack",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "empack",
		},
	}
}
