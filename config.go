package combridge

import (
	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/combridge/interop"
	"github.com/obinnaokechukwu/combridge/policy"
)

// Config holds the bridge's ambient dependencies: logging and metrics (the
// interop library and the global-instance policy are in Deps). ffgo itself has no
// configuration surface (it just calls Init()); this module's scale — one
// process-wide cache, a GC hook, a metrics surface — calls for the
// functional-options shape used throughout the rest of the retrieved
// corpus (OPA's plugin managers, coraza's directive parsing).
type Config struct {
	Logger  *logrus.Entry
	Metrics *Metrics
}

// Option configures a Bridge at construction time.
type Option func(*Config)

// WithLogger overrides the default logger (logrus.StandardLogger()).
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Config) {
		c.Logger = logger.WithField("component", "combridge")
	}
}

// WithMetrics overrides the default Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		Logger:  logrus.StandardLogger().WithField("component", "combridge"),
		Metrics: NewMetrics(),
	}
}

// Deps bundles the two non-goal collaborators (spec §1) a Bridge needs:
// the interop library and, optionally, a default ("global instance")
// managed policy used when callers don't supply one (component E).
type Deps struct {
	Library      interop.Library
	GlobalPolicy policy.Policy
}
