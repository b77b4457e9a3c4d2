// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper. It is built once at
// startup and passed by value to constructors.
type Config struct {
	Harvester HarvesterConfig `mapstructure:"harvester"`
	Storage   StorageConfig   `mapstructure:"storage"`
	State     StateConfig     `mapstructure:"state"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// HarvesterConfig governs the fetch pool.
type HarvesterConfig struct {
	Workers        int    `mapstructure:"workers"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	Proxy          string `mapstructure:"proxy"`
	LogHeaders     bool   `mapstructure:"log_headers"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	ProxyCheckURL  string `mapstructure:"proxy_check_url"`
}

// StorageConfig selects where samples are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	DumpDir   string `mapstructure:"dump_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// StateConfig selects where the seen-URL and seen-hash sets live between runs.
type StateConfig struct {
	Backend     string `mapstructure:"backend"`
	URLsFile    string `mapstructure:"urls_file"`
	HashesFile  string `mapstructure:"hashes_file"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// SandboxConfig toggles the optional analysis services.
type SandboxConfig struct {
	VxCageEnabled  bool   `mapstructure:"vxcage_enabled"`
	VxCageURL      string `mapstructure:"vxcage_url"`
	CuckooEnabled  bool   `mapstructure:"cuckoo_enabled"`
	CuckooURL      string `mapstructure:"cuckoo_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// CatalogConfig controls the optional Postgres sample catalog.
type CatalogConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// NotifyConfig controls sample event publishing.
type NotifyConfig struct {
	Backend     string `mapstructure:"backend"`
	KafkaBroker string `mapstructure:"kafka_broker"`
	Topic       string `mapstructure:"topic"`
	ProjectID   string `mapstructure:"project_id"`
}

// FeedsConfig lists the feed sources to harvest; empty means all.
type FeedsConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"proxy":   "harvester.proxy",
	"workers": "harvester.workers",
	"dumpdir": "storage.dump_dir",
	"logfile": "logging.file",
	"vxcage":  "sandbox.vxcage_enabled",
	"cuckoo":  "sandbox.cuckoo_enabled",
}

// Load builds a Config from disk, environment and (optionally) CLI flags.
// Flags win over environment, which wins over the file.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MALTRIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvester.workers", 5)
	v.SetDefault("harvester.timeout_seconds", 10)
	v.SetDefault("harvester.user_agent", "Maltrieve")
	v.SetDefault("harvester.proxy", "")
	v.SetDefault("harvester.log_headers", false)
	v.SetDefault("harvester.max_body_bytes", 0)
	v.SetDefault("harvester.proxy_check_url", "http://whatthehellismyip.com/?ipraw")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.dump_dir", DefaultDumpDir)
	v.SetDefault("storage.prefix", "samples")
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.urls_file", "urls.json")
	v.SetDefault("state.hashes_file", "hashes.json")
	v.SetDefault("state.redis_prefix", "maltrieve:")
	v.SetDefault("sandbox.vxcage_enabled", false)
	v.SetDefault("sandbox.vxcage_url", "http://localhost:8080/malware/add")
	v.SetDefault("sandbox.cuckoo_enabled", false)
	v.SetDefault("sandbox.cuckoo_url", "http://localhost:8090/tasks/create/file")
	v.SetDefault("sandbox.timeout_seconds", 60)
	v.SetDefault("sandbox.user_agent", "Maltrieve")
	v.SetDefault("catalog.table", "samples")
	v.SetDefault("notify.backend", "none")
	v.SetDefault("feeds.enabled", []string{})
	v.SetDefault("logging.development", true)
}

// DefaultDumpDir is used when no dump directory is configured or the configured one is unusable.
const DefaultDumpDir = "/tmp/malware"

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvester.Workers <= 0 {
		return fmt.Errorf("harvester.workers must be > 0")
	}
	if c.Harvester.TimeoutSeconds <= 0 {
		return fmt.Errorf("harvester.timeout_seconds must be > 0")
	}
	if c.Harvester.MaxBodyBytes < 0 {
		return fmt.Errorf("harvester.max_body_bytes must be >= 0")
	}
	if c.Harvester.Proxy != "" {
		if _, err := ProxyURL(c.Harvester.Proxy); err != nil {
			return fmt.Errorf("harvester.proxy: %w", err)
		}
	}
	switch c.Storage.Backend {
	case "local":
		if strings.TrimSpace(c.Storage.DumpDir) == "" {
			return fmt.Errorf("storage.dump_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be local, gcs or memory, got %q", c.Storage.Backend)
	}
	switch c.State.Backend {
	case "file":
		if c.State.URLsFile == "" || c.State.HashesFile == "" {
			return fmt.Errorf("state.urls_file and state.hashes_file must be set for the file backend")
		}
	case "redis":
		if c.State.RedisAddr == "" {
			return fmt.Errorf("state.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("state.backend must be file or redis, got %q", c.State.Backend)
	}
	if c.Sandbox.VxCageEnabled && c.Sandbox.VxCageURL == "" {
		return fmt.Errorf("sandbox.vxcage_url must be set when vxcage is enabled")
	}
	if c.Sandbox.CuckooEnabled && c.Sandbox.CuckooURL == "" {
		return fmt.Errorf("sandbox.cuckoo_url must be set when cuckoo is enabled")
	}
	switch c.Notify.Backend {
	case "", "none":
	case "kafka":
		if c.Notify.KafkaBroker == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.kafka_broker and notify.topic must be set for the kafka backend")
		}
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set for the pubsub backend")
		}
	default:
		return fmt.Errorf("notify.backend must be none, kafka or pubsub, got %q", c.Notify.Backend)
	}
	return nil
}

// FetchTimeout converts the harvester timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Harvester.TimeoutSeconds) * time.Second
}

// SandboxTimeout converts the sandbox timeout into a duration.
func (c Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSeconds) * time.Second
}

// ProxyURL parses a proxy given either as a URL or as the bare address:port the
// CLI has always accepted.
func ProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	return u, nil
}
