package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type (
	// Settings is the typed configuration of the reliability core.
	Settings struct {
		Database DatabaseCfg `mapstructure:"database"`
		Backup   BackupCfg   `mapstructure:"backup"`
		Retry    RetryCfg    `mapstructure:"retry"`
		Logger   LoggerCfg   `mapstructure:"logger"`
		Sinks    SinksCfg    `mapstructure:"sinks"`
	}

	// DatabaseCfg configures the target and administrative PostgreSQL connections.
	DatabaseCfg struct {
		DSN             string        `mapstructure:"dsn" validate:"required"`
		AdminDSN        string        `mapstructure:"admin_dsn" validate:"required"`
		Name            string        `mapstructure:"name" validate:"required"`
		MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	}

	// BackupCfg configures the dump/restore coordinator.
	BackupCfg struct {
		Dir         string        `mapstructure:"dir" validate:"required"`
		Host        string        `mapstructure:"host"`
		Port        int           `mapstructure:"port" validate:"min=0,max=65535"`
		User        string        `mapstructure:"user"`
		Password    string        `mapstructure:"password"`
		ToolTimeout time.Duration `mapstructure:"tool_timeout"`
	}

	// RetryCfg configures the default retry strategy for data operations.
	RetryCfg struct {
		MaxRetries  int           `mapstructure:"max_retries" validate:"min=0"`
		Delay       time.Duration `mapstructure:"delay"`
		Exponential bool          `mapstructure:"exponential"`
	}

	// LoggerCfg configures the structured logging engine.
	LoggerCfg struct {
		Engine string `mapstructure:"engine" validate:"omitempty,oneof=zerolog zap slog logrus"`
		Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
		File   string `mapstructure:"file"`
	}

	// SinksCfg configures the optional failure-record sinks. Empty addresses
	// disable the corresponding sink.
	SinksCfg struct {
		RedisAddr      string   `mapstructure:"redis_addr"`
		RedisPassword  string   `mapstructure:"redis_password"`
		RedisDB        int      `mapstructure:"redis_db" validate:"min=0"`
		KafkaBrokers   []string `mapstructure:"kafka_brokers"`
		KafkaTopic     string   `mapstructure:"kafka_topic"`
		RabbitURL      string   `mapstructure:"rabbit_url"`
		RabbitExchange string   `mapstructure:"rabbit_exchange"`
	}
)

// Settings распаковывает конфигурацию в типизированную структуру и валидирует её.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := validator.New().Struct(s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
