package cache

import (
	"time"

	"github.com/agentuity/memocache/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// config holds the resolved configuration of one Cache. It is immutable once
// New returns.
type config struct {
	prefix         string
	timeout        time.Duration
	grace          time.Duration
	keyFn          KeyFunc
	modeFn         ModeFunc
	binary         bool
	logger         logger.Logger
	clock          func() time.Time
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Cache.
type Option func(*config)

func defaultConfig(timeout time.Duration) config {
	return config{
		timeout: timeout,
		keyFn:   MD5Key,
		modeFn:  DefaultMode,
		logger:  logger.Discard,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

func applyOptions(timeout time.Duration, opts []Option) config {
	cfg := defaultConfig(timeout)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = otel.GetMeterProvider()
	}
	return cfg
}

// WithPrefix sets the namespace label used in logs and telemetry. Pass the
// same prefix to the backend constructor so keys are namespaced in storage.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithGrace sets the grace window that ends at the timeout. Zero disables
// recache and refresh behaviour.
func WithGrace(d time.Duration) Option {
	return func(c *config) { c.grace = d }
}

// WithKeyFunc replaces the default MD5Key key derivation.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.keyFn = fn
		}
	}
}

// WithModeFunc replaces DefaultMode, e.g. to bypass the cache for some users.
func WithModeFunc(fn ModeFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.modeFn = fn
		}
	}
}

// WithBinary stores computed values as raw bytes.
func WithBinary(b bool) Option {
	return func(c *config) { c.binary = b }
}

// WithLogger sets the logger used for cache decisions. Defaults to logger.Discard.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source. Entries are stamped with its value.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.clock = now
		}
	}
}

// WithTracerProvider sets the provider for call spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the provider for call metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = mp }
}
