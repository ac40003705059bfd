package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ipgconnect/internal/digest"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	API       APIConfig
	Relay     RelayConfig
	Report    ReportConfig
	Retention RetentionConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

// IsDevelopment reports whether verbose development logging is wanted.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr     string
	Pass     string
	DB       int
	DedupTTL time.Duration
}

// GatewayConfig holds the IPG Connect merchant credentials.
type GatewayConfig struct {
	StoreID       string
	SharedSecret  string
	HashAlgorithm digest.Algorithm
	CardDetails   bool
}

type APIConfig struct {
	Key string
}

// RelayConfig points at the order-processing webhook that receives verified outcomes.
type RelayConfig struct {
	URL     string
	Timeout time.Duration
}

type ReportConfig struct {
	BotToken string
	ChatID   string
}

type RetentionConfig struct {
	Days               int
	PendingReportAfter time.Duration
}

var (
	ErrMissingStoreID      = errors.New("IPG_STORE_ID is required")
	ErrMissingSharedSecret = errors.New("IPG_SHARED_SECRET is required")
	ErrMissingDatabaseName = errors.New("DB_NAME is required")
)

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	return load(viper.New())
}

// LoadDatabaseOnly reads just the MySQL settings, for schema migration runs
// that have no gateway credentials at hand.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDatabaseDefaults(v)

	db := databaseConfig(v)
	if db.Name == "" {
		return nil, ErrMissingDatabaseName
	}
	return &db, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_CHARSET", "utf8mb4")
}

func databaseConfig(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:    v.GetString("DB_HOST"),
		Port:    v.GetString("DB_PORT"),
		Name:    v.GetString("DB_NAME"),
		User:    v.GetString("DB_USER"),
		Pass:    v.GetString("DB_PASS"),
		Charset: v.GetString("DB_CHARSET"),
	}
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("APP_ENV", "production")
	setDatabaseDefaults(v)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DEDUP_TTL", "24h")
	v.SetDefault("IPG_HASH_ALGORITHM", digest.Default.String())
	v.SetDefault("IPG_CARD_DETAILS", true)
	v.SetDefault("RELAY_TIMEOUT", "10s")
	v.SetDefault("RETENTION_DAYS", 90)
	v.SetDefault("PENDING_REPORT_AFTER", "1h")

	alg, err := digest.ParseAlgorithm(v.GetString("IPG_HASH_ALGORITHM"))
	if err != nil {
		return nil, fmt.Errorf("IPG_HASH_ALGORITHM: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("APP_PORT"),
			Env:  v.GetString("APP_ENV"),
		},
		Database: databaseConfig(v),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Pass:     v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
			DedupTTL: durationOr(v.GetString("DEDUP_TTL"), 24*time.Hour),
		},
		Gateway: GatewayConfig{
			StoreID:       v.GetString("IPG_STORE_ID"),
			SharedSecret:  v.GetString("IPG_SHARED_SECRET"),
			HashAlgorithm: alg,
			CardDetails:   v.GetBool("IPG_CARD_DETAILS"),
		},
		API: APIConfig{
			Key: v.GetString("API_KEY"),
		},
		Relay: RelayConfig{
			URL:     v.GetString("ORDER_WEBHOOK_URL"),
			Timeout: durationOr(v.GetString("RELAY_TIMEOUT"), 10*time.Second),
		},
		Report: ReportConfig{
			BotToken: v.GetString("BOT_TOKEN"),
			ChatID:   v.GetString("REPORT_CHAT_ID"),
		},
		Retention: RetentionConfig{
			Days:               v.GetInt("RETENTION_DAYS"),
			PendingReportAfter: durationOr(v.GetString("PENDING_REPORT_AFTER"), time.Hour),
		},
	}

	if cfg.Gateway.StoreID == "" {
		return nil, ErrMissingStoreID
	}
	if cfg.Gateway.SharedSecret == "" {
		return nil, ErrMissingSharedSecret
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, admin API will reject all requests")
	}

	return cfg, nil
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
