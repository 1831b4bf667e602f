// Package config loads the engine's runtime configuration from
// environment variables, grounded on original_source's ProductionConfig
// (production_readiness.rs) for shape and defaults, and on
// haukened-rr-dns's koanf+validator loading pattern for mechanics.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rawblock/rete-engine/internal/monitor"
)

// EnvPrefix is prepended to every environment variable this package reads,
// e.g. RETE_SERVICE__NAME, RETE_RESOURCES__MAX_RULES.
const EnvPrefix = "RETE_"

// AppConfig is the engine's full runtime configuration, transcribed from
// original_source's ProductionConfig into five sub-sections. gRPC, mTLS,
// and Jaeger/Prometheus exporter fields from the Rust struct are dropped:
// this engine exposes gin HTTP + a websocket event stream (spec.md §4.11),
// not a gRPC service, and SPEC_FULL.md names no tracing backend to wire.
type AppConfig struct {
	Service     ServiceConfig     `koanf:"service"`
	Performance PerformanceConfig `koanf:"performance"`
	Security    SecurityConfig    `koanf:"security"`
	Monitoring  MonitoringConfig  `koanf:"monitoring"`
	Resources   ResourceConfig    `koanf:"resources"`
}

// ServiceConfig identifies the running instance and its HTTP surface.
type ServiceConfig struct {
	ServiceName        string `koanf:"name" validate:"required"`
	ServiceVersion     string `koanf:"version" validate:"required"`
	Environment        string `koanf:"environment" validate:"required,oneof=production staging development"`
	HTTPAddress        string `koanf:"http_address" validate:"required"`
	HealthCheckAddress string `koanf:"health_check_address"`
}

// PerformanceConfig tunes the engine's processing and caching behavior.
type PerformanceConfig struct {
	MaxConnections   uint `koanf:"max_connections" validate:"gte=1"`
	RequestTimeoutMs uint `koanf:"request_timeout_ms" validate:"gte=1"`
	WorkerPoolSize   uint `koanf:"worker_pool_size" validate:"gte=1"`
	CacheEnabled     bool `koanf:"cache_enabled"`
	CacheSize        uint `koanf:"cache_size" validate:"gte=1"`
	CacheTTLSeconds  uint `koanf:"cache_ttl_s" validate:"gte=1"`
}

// SecurityConfig controls transport security and request throttling.
type SecurityConfig struct {
	TLSEnabled          bool   `koanf:"tls_enabled"`
	TLSCertPath         string `koanf:"tls_cert_path" validate:"required_if=TLSEnabled true"`
	TLSKeyPath          string `koanf:"tls_key_path" validate:"required_if=TLSEnabled true"`
	RateLimitingEnabled bool   `koanf:"rate_limiting_enabled"`
	RateLimitRPM        uint   `koanf:"rate_limit_rpm" validate:"gte=1"`
	AuthRequired        bool   `koanf:"auth_required"`
	AuthToken           string `koanf:"auth_token" validate:"required_if=AuthRequired true"`
}

// MonitoringConfig controls logging verbosity and metrics collection.
type MonitoringConfig struct {
	StructuredLogging bool   `koanf:"structured_logging"`
	LogLevel          string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	MetricsEnabled    bool   `koanf:"metrics_enabled"`
	MetricsIntervalS  uint   `koanf:"metrics_interval_s" validate:"gte=1"`
}

// ResourceConfig bounds the engine's resource consumption, transcribed
// from original_source's ResourceConfig plus CascadeDepthLimit, which the
// Rust crate tracks as a runtime constant rather than a config field.
type ResourceConfig struct {
	MaxMemoryMB         uint64 `koanf:"max_memory_mb" validate:"gte=1"`
	MaxCPUPercent       uint   `koanf:"max_cpu_percent" validate:"gte=1"`
	MaxRules            uint   `koanf:"max_rules" validate:"gte=1"`
	MaxFacts            uint64 `koanf:"max_facts" validate:"gte=1"`
	MaxRequestSizeBytes uint64 `koanf:"max_request_size_bytes" validate:"gte=1"`
	CascadeDepthLimit   uint   `koanf:"cascade_depth_limit" validate:"gte=1,lte=64"`
}

// defaults mirrors original_source's ProductionConfig::default(), with
// values appropriate to a single-process Go engine instead of a gRPC
// fleet (HTTP address instead of grpc_address, no mTLS/Jaeger).
func defaults() AppConfig {
	return AppConfig{
		Service: ServiceConfig{
			ServiceName:        "rete-engine",
			ServiceVersion:     "1.0.0",
			Environment:        "production",
			HTTPAddress:        "0.0.0.0:8080",
			HealthCheckAddress: "0.0.0.0:8081",
		},
		Performance: PerformanceConfig{
			MaxConnections:   1000,
			RequestTimeoutMs: 30000,
			WorkerPoolSize:   8,
			CacheEnabled:     true,
			CacheSize:        10000,
			CacheTTLSeconds:  300,
		},
		Security: SecurityConfig{
			TLSEnabled:          false,
			RateLimitingEnabled: true,
			RateLimitRPM:        10000,
			AuthRequired:        false,
		},
		Monitoring: MonitoringConfig{
			StructuredLogging: true,
			LogLevel:          "info",
			MetricsEnabled:    true,
			MetricsIntervalS:  15,
		},
		Resources: ResourceConfig{
			MaxMemoryMB:         4096,
			MaxCPUPercent:       200,
			MaxRules:            10000,
			MaxFacts:            1_000_000,
			MaxRequestSizeBytes: 10485760,
			CascadeDepthLimit:   8,
		},
	}
}

// envLoader loads environment variables prefixed with EnvPrefix. A double
// underscore marks section nesting (koanf's "." path separator), so
// RETE_RESOURCES__MAX_CPU_PERCENT maps onto Resources.MaxCPUPercent
// without colliding with the single underscores inside field names —
// a plain single-underscore transform can't tell "section boundary"
// from "part of this field's name" apart.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			trimmed := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(trimmed, "__", "."), value
		},
	}), nil)
}

// Load builds an AppConfig from defaults overlaid with environment
// variables, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// Thresholds derives a monitor.Thresholds from this config's resource
// limits, so an operator tuning RETE_RESOURCES__MAX_CPU_PERCENT in the
// environment also moves the alert threshold that watches it, rather
// than requiring a second, disconnected set of environment variables.
func (c AppConfig) Thresholds() monitor.Thresholds {
	t := monitor.DefaultThresholds()
	t.CPUUsageCritical = float64(c.Resources.MaxCPUPercent)
	t.CPUUsageWarning = t.CPUUsageCritical * 0.8
	return t
}
