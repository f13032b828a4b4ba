package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config структура конфигурации приложения
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	News      NewsConfig      `mapstructure:"news"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readtimeout"`
	WriteTimeout    time.Duration `mapstructure:"writetimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"automigrate"`
}

// RedisConfig конфигурация кеша. Пустой адрес означает кеш в памяти процесса.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig конфигурация публикации событий. Без брокеров события не отправляются.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	EnsureTopics bool     `mapstructure:"ensuretopics"`
}

// AuthConfig конфигурация проверки JWT, выданных провайдером идентификации
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtsecret"`
}

// PaymentsConfig конфигурация платежных провайдеров
type PaymentsConfig struct {
	Provider            string `mapstructure:"provider"`
	PaystackSecret      string `mapstructure:"paystacksecret"`
	StripeWebhookSecret string `mapstructure:"stripewebhooksecret"`
}

// NewsConfig конфигурация внешнего API статей
type NewsConfig struct {
	BaseURL  string        `mapstructure:"baseurl"`
	APIKey   string        `mapstructure:"apikey"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cachettl"`
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RateLimitConfig ограничение частоты создания платежей на пользователя
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction сообщает, запущен ли сервис в production-окружении
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load загружает конфигурацию: значения по умолчанию, затем config.yml (если есть),
// затем переменные окружения вида SERVER_PORT, DATABASE_HOST и т.д.
func Load(paths ...string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env не обязателен
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readtimeout", 15*time.Second)
	v.SetDefault("server.writetimeout", 15*time.Second)
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "newsletter")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.automigrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 15*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "subscription_events")
	v.SetDefault("kafka.ensuretopics", false)

	v.SetDefault("auth.jwtsecret", "")

	v.SetDefault("payments.provider", "smoothpay")
	v.SetDefault("payments.paystacksecret", "")
	v.SetDefault("payments.stripewebhooksecret", "")

	v.SetDefault("news.baseurl", "https://newsapi.org")
	v.SetDefault("news.apikey", "")
	v.SetDefault("news.timeout", 10*time.Second)
	v.SetDefault("news.cachettl", 10*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 5)
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwtsecret (AUTH_JWTSECRET) is required")
	}
	if c.Payments.Provider == "" {
		return errors.New("config: payments.provider must not be empty")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("config: ratelimit.rps and ratelimit.burst must be positive")
	}
	return nil
}
