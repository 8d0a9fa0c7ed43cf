package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config описывает настройки запуска сервиса. Значения читаются из
// YAML-файла (опционально) и переопределяются переменными окружения
// с префиксом BKO_ (BKO_HTTP_ADDR, BKO_POSTGRES_DSN и т.д.).
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	// PostgresDSN пустой означает in-memory хранилища.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// KafkaBrokers — список брокеров через запятую; пустой означает
	// in-process шину событий.
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaGroupID string `mapstructure:"kafka_group_id"`

	// RedisAddr пустой отключает кэш отчётов.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel string `mapstructure:"log_level"`

	OutboxPollIntervalMS  int `mapstructure:"outbox_poll_interval_ms"`
	OutboxBatchSize       int `mapstructure:"outbox_batch_size"`
	DedupeCleanupMinutes  int `mapstructure:"dedupe_cleanup_minutes"`
	ShutdownTimeoutSecond int `mapstructure:"shutdown_timeout_seconds"`
}

// Load читает конфигурацию. configPath может быть пустым — тогда
// используются значения по умолчанию и переменные окружения.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_group_id", "backoffice-settlement")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("outbox_poll_interval_ms", 1000)
	v.SetDefault("outbox_batch_size", 100)
	v.SetDefault("dedupe_cleanup_minutes", 10)
	v.SetDefault("shutdown_timeout_seconds", 5)

	v.SetEnvPrefix("BKO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.KafkaBrokers != "" && c.KafkaGroupID == "" {
		return fmt.Errorf("kafka_group_id is required when kafka_brokers is set")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox_batch_size must be positive")
	}
	return nil
}

// Brokers возвращает список Kafka-брокеров.
func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// OutboxPollInterval возвращает интервал опроса outbox.
func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMS) * time.Millisecond
}

// DedupeCleanupInterval возвращает интервал очистки dedupe-ключей.
func (c *Config) DedupeCleanupInterval() time.Duration {
	return time.Duration(c.DedupeCleanupMinutes) * time.Minute
}

// ShutdownTimeout возвращает таймаут graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecond) * time.Second
}
