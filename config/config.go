package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/memocache/cache"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the config file read when Load is given no path.
const EnvConfigFile = "MEMO_CONFIG_FILE"

// Config describes one cache namespace and the backend that stores it.
type Config struct {
	Prefix  string
	Timeout time.Duration
	Grace   time.Duration
	Binary  bool
	Backend Backend
}

// Backend selects and configures a storage backend. Only the fields used by
// Type are read.
type Backend struct {
	Type         string
	Codec        string
	Expires      time.Duration
	QueryTimeout time.Duration

	// file
	Dir string
	// sqlite path, postgres or mysql DSN
	DSN string
	// redis
	URL string
	// s3
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	// composite
	Tiers []Backend
}

// Durations accept Go syntax ("90s"), day and week units ("2d") or a bare
// number of seconds, so they are decoded as any and parsed afterwards.
type fileConfig struct {
	Prefix  string      `yaml:"prefix" toml:"prefix"`
	Timeout any         `yaml:"timeout" toml:"timeout"`
	Grace   any         `yaml:"grace" toml:"grace"`
	Binary  bool        `yaml:"binary" toml:"binary"`
	Backend fileBackend `yaml:"backend" toml:"backend"`
}

type fileBackend struct {
	Type         string        `yaml:"type" toml:"type"`
	Codec        string        `yaml:"codec" toml:"codec"`
	Expires      any           `yaml:"expires" toml:"expires"`
	QueryTimeout any           `yaml:"query_timeout" toml:"query_timeout"`
	Dir          string        `yaml:"dir" toml:"dir"`
	DSN          string        `yaml:"dsn" toml:"dsn"`
	URL          string        `yaml:"url" toml:"url"`
	Bucket       string        `yaml:"bucket" toml:"bucket"`
	Region       string        `yaml:"region" toml:"region"`
	Endpoint     string        `yaml:"endpoint" toml:"endpoint"`
	PathStyle    bool          `yaml:"path_style" toml:"path_style"`
	Tiers        []fileBackend `yaml:"tiers" toml:"tiers"`
}

// Default returns the configuration used when nothing is set: an hour long
// timeout with no grace window, stored in memory.
func Default() Config {
	return Config{
		Timeout: time.Hour,
		Backend: Backend{Type: "memory", QueryTimeout: cache.DefaultQueryTimeout},
	}
}

// Load reads the config file at path, applies MEMO_* environment overrides
// and validates the result. An empty path falls back to MEMO_CONFIG_FILE and
// then to defaults alone. Environment values beat file values.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path == "" {
		path, _ = lookup(EnvConfigFile)
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, &fc)
	case ".toml":
		err = toml.Unmarshal(buf, &fc)
	default:
		return errors.Wrapf(cache.ErrInvalidConfig, "unsupported config format %q", ext)
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "parsing config %s", path), cache.ErrInvalidConfig)
	}
	return fc.merge(cfg)
}

func (fc fileConfig) merge(cfg *Config) error {
	if fc.Prefix != "" {
		cfg.Prefix = fc.Prefix
	}
	if err := setDuration(&cfg.Timeout, fc.Timeout, "timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Grace, fc.Grace, "grace"); err != nil {
		return err
	}
	cfg.Binary = cfg.Binary || fc.Binary
	return fc.Backend.merge(&cfg.Backend)
}

func (fb fileBackend) merge(b *Backend) error {
	for dst, src := range map[*string]string{
		&b.Type: fb.Type, &b.Codec: fb.Codec, &b.Dir: fb.Dir, &b.DSN: fb.DSN, &b.URL: fb.URL,
		&b.Bucket: fb.Bucket, &b.Region: fb.Region, &b.Endpoint: fb.Endpoint,
	} {
		if src != "" {
			*dst = src
		}
	}
	b.PathStyle = b.PathStyle || fb.PathStyle
	if err := setDuration(&b.Expires, fb.Expires, "expires"); err != nil {
		return err
	}
	if err := setDuration(&b.QueryTimeout, fb.QueryTimeout, "query_timeout"); err != nil {
		return err
	}
	for _, ft := range fb.Tiers {
		tier := Backend{Codec: b.Codec, QueryTimeout: b.QueryTimeout}
		if err := ft.merge(&tier); err != nil {
			return err
		}
		b.Tiers = append(b.Tiers, tier)
	}
	return nil
}

func setDuration(dst *time.Duration, raw any, name string) error {
	if raw == nil {
		return nil
	}
	d, err := toDuration(raw)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid %s", name), cache.ErrInvalidConfig)
	}
	*dst = d
	return nil
}

func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case uint64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		return ParseDuration(v)
	}
	return 0, errors.Newf("unsupported duration %v (%T)", raw, raw)
}

// ParseDuration parses Go duration syntax, the day and week units understood
// by str2duration, or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing duration %q", s)
	}
	return d, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, name string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, name string) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		d, err := ParseDuration(v)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "invalid %s", name), cache.ErrInvalidConfig)
		}
		*dst = d
		return nil
	}
	flag := func(dst *bool, name string) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "invalid %s", name), cache.ErrInvalidConfig)
		}
		*dst = b
		return nil
	}

	str(&cfg.Prefix, "MEMO_PREFIX")
	str(&cfg.Backend.Type, "MEMO_BACKEND")
	str(&cfg.Backend.Codec, "MEMO_CODEC")
	str(&cfg.Backend.Dir, "MEMO_DIR")
	str(&cfg.Backend.DSN, "MEMO_DSN")
	str(&cfg.Backend.URL, "MEMO_REDIS_URL")
	str(&cfg.Backend.Bucket, "MEMO_S3_BUCKET")
	str(&cfg.Backend.Region, "MEMO_S3_REGION")
	str(&cfg.Backend.Endpoint, "MEMO_S3_ENDPOINT")

	for _, err := range []error{
		dur(&cfg.Timeout, "MEMO_TIMEOUT"),
		dur(&cfg.Grace, "MEMO_GRACE"),
		dur(&cfg.Backend.Expires, "MEMO_EXPIRES"),
		dur(&cfg.Backend.QueryTimeout, "MEMO_QUERY_TIMEOUT"),
		flag(&cfg.Binary, "MEMO_BINARY"),
		flag(&cfg.Backend.PathStyle, "MEMO_S3_PATH_STYLE"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the values a Cache and OpenBackend would reject so a bad
// file fails at load time.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.Wrapf(cache.ErrInvalidConfig, "timeout must be positive, got %s", c.Timeout)
	}
	if c.Grace < 0 || c.Grace > c.Timeout {
		return errors.Wrapf(cache.ErrInvalidConfig, "grace %s must be between 0 and the timeout %s", c.Grace, c.Timeout)
	}
	return c.Backend.Validate()
}

// Validate checks that the fields required by the backend type are set.
func (b Backend) Validate() error {
	if _, err := codecFor(b.Codec); err != nil {
		return err
	}
	need := func(val, field string) error {
		if val == "" {
			return errors.Wrapf(cache.ErrInvalidConfig, "%s backend requires %s", b.Type, field)
		}
		return nil
	}
	switch b.Type {
	case "memory":
		return nil
	case "file":
		return need(b.Dir, "dir")
	case "sqlite", "postgres", "mysql":
		return need(b.DSN, "dsn")
	case "redis":
		return need(b.URL, "url")
	case "s3":
		return need(b.Bucket, "bucket")
	case "composite":
		if len(b.Tiers) == 0 {
			return errors.Wrap(cache.ErrInvalidConfig, "composite backend requires tiers")
		}
		for i, tier := range b.Tiers {
			if err := tier.Validate(); err != nil {
				return errors.Wrapf(err, "tier %d", i)
			}
		}
		return nil
	}
	return errors.Wrapf(cache.ErrInvalidConfig, "unknown backend type %q", b.Type)
}

// CacheOptions returns the cache options implied by the configuration.
func (c Config) CacheOptions() []cache.Option {
	return []cache.Option{
		cache.WithPrefix(c.Prefix),
		cache.WithGrace(c.Grace),
		cache.WithBinary(c.Binary),
	}
}
