package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Google   GoogleConfig   `mapstructure:"google"`
	AI       AIConfig       `mapstructure:"ai"`
	Pixabay  PixabayConfig  `mapstructure:"pixabay"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite file
	DSN    string `mapstructure:"dsn"`    // postgres DSN
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type AIConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type PixabayConfig struct {
	APIKey       string `mapstructure:"api_key"`
	RPMBudget    int    `mapstructure:"rpm_budget"`
	CacheTTLDays int    `mapstructure:"cache_ttl_days"`
}

type StorageConfig struct {
	Provider   string `mapstructure:"provider"` // s3 or none
	Endpoint   string `mapstructure:"endpoint"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	PublicBase string `mapstructure:"public_base"`
}

type IngestConfig struct {
	PollSeconds    int    `mapstructure:"poll_seconds"`
	BackfillPages  int    `mapstructure:"backfill_pages"`
	BackfillTarget int    `mapstructure:"backfill_target"`
	GmailBatch     int    `mapstructure:"gmail_batch"`
	Query          string `mapstructure:"query"`
	ThreadMode     string `mapstructure:"thread_mode"` // skip or keep
}

type WorkerConfig struct {
	HeavySlots     int `mapstructure:"heavy_slots"`
	PopTimeoutSecs int `mapstructure:"pop_timeout_secs"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type PathsConfig struct {
	Credentials string `mapstructure:"credentials"`
	Settings    string `mapstructure:"settings"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/newsletters.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("pixabay.rpm_budget", 25)
	v.SetDefault("pixabay.cache_ttl_days", 7)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "newsletter-images")
	v.SetDefault("ingest.poll_seconds", 60)
	v.SetDefault("ingest.backfill_pages", 4)
	v.SetDefault("ingest.backfill_target", 200)
	v.SetDefault("ingest.gmail_batch", 100)
	v.SetDefault("ingest.query", "-in:spam -in:trash (newer_than:365d)")
	v.SetDefault("ingest.thread_mode", "skip")
	v.SetDefault("worker.heavy_slots", 3)
	v.SetDefault("worker.pop_timeout_secs", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("paths.credentials", "./data/credentials.json")
	v.SetDefault("paths.settings", "./data/user_settings.json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	v.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("pixabay.api_key", "PIXABAY_API_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_base", "S3_PUBLIC_BASE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
