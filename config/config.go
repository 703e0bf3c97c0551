package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the proxy
type Config struct {
	Server  ServerConfig
	Worker  WorkerConfig
	Gate    GateConfig
	Ledger  LedgerConfig
	Warm    WarmConfig
	Redis   RedisConfig
	Async   AsyncConfig
	DB      DBConfig
	Storage StorageConfig
	Tracing TracingConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port string
}

type WorkerConfig struct {
	Binary         string
	Args           []string
	WorkDir        string
	Env            []string
	RunTimeout     time.Duration
	MaxRunTimeout  time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int
	MaxEvents      int
}

type GateConfig struct {
	MaxConcurrent int
	MaxQueue      int
	QueueTimeout  time.Duration
	RetryAfter    time.Duration
}

type LedgerConfig struct {
	MaxEntries int
	TTL        time.Duration
	MaxEvents  int
}

type WarmConfig struct {
	Enabled  bool
	Interval time.Duration
	Debounce time.Duration
	Payload  string
	Timeout  time.Duration
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type AsyncConfig struct {
	Consumers int
	ResultTTL time.Duration
}

type DBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type StorageConfig struct {
	Type string
	Path string
}

type TracingConfig struct {
	Enabled    bool
	DaemonAddr string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads path (if non-empty) and then the environment. Every key maps
// to an upper-case env var with dots replaced by underscores, so
// redis.host is REDIS_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{Port: v.GetString("server.port")},
		Worker: WorkerConfig{
			Binary:         v.GetString("worker.binary"),
			Args:           v.GetStringSlice("worker.args"),
			WorkDir:        v.GetString("worker.workdir"),
			Env:            v.GetStringSlice("worker.env"),
			RunTimeout:     v.GetDuration("worker.run_timeout"),
			MaxRunTimeout:  v.GetDuration("worker.max_run_timeout"),
			KillGrace:      v.GetDuration("worker.kill_grace"),
			MaxOutputBytes: v.GetInt("worker.max_output_bytes"),
			MaxEvents:      v.GetInt("worker.max_events"),
		},
		Gate: GateConfig{
			MaxConcurrent: v.GetInt("gate.max_concurrent"),
			MaxQueue:      v.GetInt("gate.max_queue"),
			QueueTimeout:  v.GetDuration("gate.queue_timeout"),
			RetryAfter:    v.GetDuration("gate.retry_after"),
		},
		Ledger: LedgerConfig{
			MaxEntries: v.GetInt("ledger.max_entries"),
			TTL:        v.GetDuration("ledger.ttl"),
			MaxEvents:  v.GetInt("ledger.max_events"),
		},
		Warm: WarmConfig{
			Enabled:  v.GetBool("warm.enabled"),
			Interval: v.GetDuration("warm.interval"),
			Debounce: v.GetDuration("warm.debounce"),
			Payload:  v.GetString("warm.payload"),
			Timeout:  v.GetDuration("warm.timeout"),
		},
		Redis: RedisConfig{
			Enabled: v.GetBool("redis.enabled"),
			Host:    v.GetString("redis.host"),
			Port:    v.GetInt("redis.port"),
		},
		Async: AsyncConfig{
			Consumers: v.GetInt("async.consumers"),
			ResultTTL: v.GetDuration("async.result_ttl"),
		},
		DB: DBConfig{
			Enabled:  v.GetBool("db.enabled"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
		},
		Storage: StorageConfig{
			Type: v.GetString("storage.type"),
			Path: v.GetString("storage.path"),
		},
		Tracing: TracingConfig{
			Enabled:    v.GetBool("tracing.enabled"),
			DaemonAddr: v.GetString("tracing.daemon_addr"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("worker.binary", "claude")
	v.SetDefault("worker.args", []string{"-p", "--output-format", "stream-json", "--verbose"})
	v.SetDefault("worker.workdir", "")
	v.SetDefault("worker.env", []string{})
	v.SetDefault("worker.run_timeout", 5*time.Minute)
	v.SetDefault("worker.max_run_timeout", 15*time.Minute)
	v.SetDefault("worker.kill_grace", 5*time.Second)
	v.SetDefault("worker.max_output_bytes", 8<<20)
	v.SetDefault("worker.max_events", 10000)

	v.SetDefault("gate.max_concurrent", 2)
	v.SetDefault("gate.max_queue", 5)
	v.SetDefault("gate.queue_timeout", 30*time.Second)
	v.SetDefault("gate.retry_after", 15*time.Second)

	v.SetDefault("ledger.max_entries", 100)
	v.SetDefault("ledger.ttl", 24*time.Hour)
	v.SetDefault("ledger.max_events", 200)

	v.SetDefault("warm.enabled", true)
	v.SetDefault("warm.interval", 10*time.Minute)
	v.SetDefault("warm.debounce", 5*time.Minute)
	v.SetDefault("warm.payload", "ping")
	v.SetDefault("warm.timeout", 60*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("async.consumers", 1)
	v.SetDefault("async.result_ttl", 10*time.Minute)

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "proxy")
	v.SetDefault("db.password", "proxy")
	v.SetDefault("db.name", "proxy")

	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.path", "/data/transcripts")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.daemon_addr", "127.0.0.1:2000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate rejects configurations the proxy cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Worker.Binary == "" {
		errs = append(errs, errors.New("worker.binary is required"))
	}
	if c.Gate.MaxConcurrent < 1 {
		errs = append(errs, errors.New("gate.max_concurrent must be at least 1"))
	}
	if c.Gate.MaxQueue < 0 {
		errs = append(errs, errors.New("gate.max_queue must not be negative"))
	}
	if c.Gate.QueueTimeout <= 0 {
		errs = append(errs, errors.New("gate.queue_timeout must be positive"))
	}
	if c.Worker.RunTimeout <= 0 {
		errs = append(errs, errors.New("worker.run_timeout must be positive"))
	}
	if c.Worker.MaxRunTimeout < c.Worker.RunTimeout {
		errs = append(errs, errors.New("worker.max_run_timeout must not be below worker.run_timeout"))
	}
	if c.Ledger.MaxEntries < 1 {
		errs = append(errs, errors.New("ledger.max_entries must be at least 1"))
	}
	switch c.Storage.Type {
	case "none", "local", "s3":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of none, local, s3", c.Storage.Type))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of console, json", c.Log.Format))
	}
	return errors.Join(errs...)
}
