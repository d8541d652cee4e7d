// Package config loads and hot-reloads the ambient configuration shared
// by every Pinenut component: hardware-acceleration flags for the
// encryption path, the logger's own on-disk defaults, the optional
// archival and admin surfaces, and telemetry verbosity. Grounded on the
// teacher's implied config.Config/config.EncryptionConfig/
// config.BackendConfig/config.AuditConfig shapes (referenced by
// internal/crypto/hardware.go, internal/s3/client.go and the teacher's
// internal/audit package but never themselves retrieved), expanded with
// gopkg.in/yaml.v3 file loading and github.com/fsnotify/fsnotify
// hot-reload in the manner the rest of the pack's config-heavy repos
// (e.g. the viper/fsnotify pairing pulled in as an indirect dependency)
// use for config files that can change underneath a running process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// HardwareConfig toggles whether detected CPU AES acceleration is
// actually used, per architecture.
type HardwareConfig struct {
	EnableAESNI    bool `yaml:"enable_aes_ni"`
	EnableARMv8AES bool `yaml:"enable_armv8_aes"`
}

// EncryptionConfig groups the encryption path's tunables.
type EncryptionConfig struct {
	Hardware HardwareConfig `yaml:"hardware"`
}

// Rotation names one of the logger's three chunk-rotation dimensions, the
// string form of internal/logger's TimeDimension used in config files.
type Rotation string

const (
	RotationDay    Rotation = "day"
	RotationHour   Rotation = "hour"
	RotationMinute Rotation = "minute"
)

// LoggerConfig carries the defaults described in the specification's
// external-interfaces section: whether the backing region is
// memory-mapped, its length, the chunk rotation granularity, the
// base64-encoded long-term public key (absent disables encryption), and
// the zstd compression level.
type LoggerConfig struct {
	UseMmap          bool     `yaml:"use_mmap"`
	BufferLen        int      `yaml:"buffer_len"`
	Rotation         Rotation `yaml:"rotation"`
	PublicKeyBase64  string   `yaml:"key"`
	CompressionLevel int      `yaml:"compression_level"`
}

// DefaultLoggerConfig returns the specification's documented defaults.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		UseMmap:          true,
		BufferLen:        327680,
		Rotation:         RotationMinute,
		PublicKeyBase64:  "",
		CompressionLevel: 10,
	}
}

// SinkConfig configures where a Tracker's diagnostic events are written,
// grounded on the teacher's internal/audit EventWriter selection (http,
// file, stdout). Only MaxEvents is consumed by telemetry.NewTracker
// today; the sink fields are reserved for a pluggable Tracker sink.
type SinkConfig struct {
	Type          string            `yaml:"type"` // "stdout", "file", "http"
	Endpoint      string            `yaml:"endpoint"`
	Headers       map[string]string `yaml:"headers"`
	FilePath      string            `yaml:"file_path"`
	BatchSize     int               `yaml:"batch_size"`
	FlushInterval time.Duration     `yaml:"flush_interval"`
	RetryCount    int               `yaml:"retry_count"`
	RetryBackoff  time.Duration     `yaml:"retry_backoff"`
}

// TrackerConfig configures the logger's fire-and-forget diagnostic
// tracker, grounded on the teacher's internal/audit AuditConfig.
type TrackerConfig struct {
	Enabled            bool       `yaml:"enabled"`
	MaxEvents          int        `yaml:"max_events"`
	Sink               SinkConfig `yaml:"sink"`
	RedactMetadataKeys []string   `yaml:"redact_metadata_keys"`
}

// ArchiveConfig configures optional S3-compatible archival of rotated
// logfiles, grounded on internal/s3/client.go's BackendConfig.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "aws", "minio", "generic"
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// DeleteAfterUpload removes the local logfile once it's durably
	// stored remotely; otherwise the rotated file stays on disk and is
	// only subject to Trim.
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
}

// AdminConfig configures the optional HTTP admin surface.
type AdminConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ListenAddr  string `yaml:"listen_addr"`
	BearerToken string `yaml:"bearer_token"`
}

// RotationCacheConfig configures the optional Redis-backed cache used to
// coordinate rotation-bucket bookkeeping across multiple logger
// processes sharing observability (not sharing a domain directory, which
// remains out of scope per the specification's Non-goals).
type RotationCacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// TTL bounds how long a claimed rotation bucket stays claimed; it
	// should exceed the logger's own rotation dimension so a slow
	// process doesn't lose its claim mid-bucket.
	TTL time.Duration `yaml:"ttl"`
}

// TelemetryConfig configures structured logging verbosity.
type TelemetryConfig struct {
	Level string `yaml:"level"` // logrus level name
	JSON  bool   `yaml:"json"`
}

// TracingConfig configures where extract.Extract's OpenTelemetry spans
// are exported to. Exporter "none" (the default)
// leaves the global no-op tracer in place, so spans are created but
// immediately discarded at zero cost.
type TracingConfig struct {
	Exporter       string  `yaml:"exporter"` // "none", "stdout", "otlp", "jaeger"
	ServiceName    string  `yaml:"service_name"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SampleFraction float64 `yaml:"sample_fraction"`
}

// Config is the top-level, file-loadable configuration for every
// Pinenut ambient concern. The per-domain Logger itself is configured
// programmatically via logger.Config; this type supplies its defaults
// plus the surrounding services.
type Config struct {
	Encryption    EncryptionConfig    `yaml:"encryption"`
	Logger        LoggerConfig        `yaml:"logger"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Admin         AdminConfig         `yaml:"admin"`
	RotationCache RotationCacheConfig `yaml:"rotation_cache"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// Default returns a Config populated with the specification's documented
// logger defaults and every optional surface disabled.
func Default() Config {
	return Config{
		Logger:    DefaultLoggerConfig(),
		Telemetry: TelemetryConfig{Level: "info"},
		Tracing:   TracingConfig{Exporter: "none", ServiceName: "pinenut", SampleFraction: 1.0},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so an incomplete file still yields valid defaults, then
// applies PINENUT_-prefixed environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override a handful of
// frequently-changed fields without editing the file on disk.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("PINENUT_BUFFER_LEN"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Logger.BufferLen = n
		}
	}
	if v, ok := os.LookupEnv("PINENUT_ROTATION"); ok {
		cfg.Logger.Rotation = Rotation(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("PINENUT_KEY"); ok {
		cfg.Logger.PublicKeyBase64 = v
	}
	if v, ok := os.LookupEnv("PINENUT_ARCHIVE_BUCKET"); ok {
		cfg.Archive.Bucket = v
		cfg.Archive.Enabled = true
	}
	if v, ok := os.LookupEnv("PINENUT_ADMIN_TOKEN"); ok {
		cfg.Admin.BearerToken = v
	}
}

// Watcher notifies a callback every time the file backing a Config
// changes on disk, re-parsing it before invoking the callback. Grounded
// on the fsnotify-driven hot-reload pattern common across the example
// pack's config-file-watching services.
type Watcher struct {
	fsw *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching path for writes, calling onChange with the
// freshly reloaded Config whenever one is observed. Parse errors are
// swallowed (the previous valid Config stays in effect) since a
// momentarily half-written file is common with atomic-rename editors.
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go func() {
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if cfg, err := Load(path); err == nil {
					onChange(cfg)
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			case <-w.done:
				return
			}
		}
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
