package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Timer    TimerConfig    `mapstructure:"timer"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// S3Config points at the bucket used for completed-session archives.
// An empty BucketName disables archiving.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether an archive bucket is configured.
func (c S3Config) Enabled() bool {
	return c.BucketName != ""
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TimerConfig configures the workout timing core.
type TimerConfig struct {
	// SnapshotBackend is one of "memory", "redis" or "sqlite".
	SnapshotBackend    string        `mapstructure:"snapshot_backend"`
	Redis              RedisConfig   `mapstructure:"redis"`
	SQLitePath         string        `mapstructure:"sqlite_path"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
	FlushTimeout       time.Duration `mapstructure:"flush_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	RestPresets        []int         `mapstructure:"rest_presets"`
	DefaultRestSeconds int           `mapstructure:"default_rest_seconds"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, timer.redis.addr -> TIMER_REDIS_ADDR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}

	if err = validate(&config); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "workout_timer")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.expiration", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("timer.snapshot_backend", BackendMemory)
	v.SetDefault("timer.redis.addr", "localhost:6379")
	v.SetDefault("timer.redis.db", 0)
	v.SetDefault("timer.redis.key_prefix", "workout-timer:")
	v.SetDefault("timer.redis.op_timeout", "2s")
	v.SetDefault("timer.sqlite_path", "workout_timer.db")
	v.SetDefault("timer.tick_interval", "1s")
	v.SetDefault("timer.checkpoint_interval", "30s")
	v.SetDefault("timer.flush_timeout", "10s")
	v.SetDefault("timer.idle_timeout", "30m")
	v.SetDefault("timer.rest_presets", []int{30, 60, 120, 180})
	v.SetDefault("timer.default_rest_seconds", 60)
}

func validate(cfg *Config) error {
	switch cfg.Timer.SnapshotBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown timer.snapshot_backend %q", cfg.Timer.SnapshotBackend)
	}
	if cfg.Timer.TickInterval <= 0 {
		return errors.New("timer.tick_interval must be positive")
	}
	if cfg.Timer.DefaultRestSeconds <= 0 {
		return errors.New("timer.default_rest_seconds must be positive")
	}
	for _, p := range cfg.Timer.RestPresets {
		if p <= 0 {
			return fmt.Errorf("timer.rest_presets: invalid preset %d", p)
		}
	}
	return nil
}
