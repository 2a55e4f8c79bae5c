package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Ranking  RankingConfig
	Import   ImportConfig
	Analysis AnalysisConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RankingConfig tunes the recompute engine and its background workers.
type RankingConfig struct {
	BatchSize         int
	JobTimeout        time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	AsyncEnabled      bool
}

// ImportConfig bounds bulk score uploads.
type ImportConfig struct {
	MaxScoreValue   float64
	MaxErrorDetails int
}

// AnalysisConfig governs cache behaviour for analysis endpoints.
type AnalysisConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ranking = RankingConfig{
		BatchSize:         v.GetInt("RANKING_BATCH_SIZE"),
		JobTimeout:        parseDuration(v.GetString("RANKING_JOB_TIMEOUT"), 20*time.Minute),
		WorkerConcurrency: v.GetInt("RANKING_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("RANKING_WORKER_RETRIES"),
		AsyncEnabled:      v.GetBool("RANKING_ASYNC_ENABLED"),
	}

	cfg.Import = ImportConfig{
		MaxScoreValue:   v.GetFloat64("IMPORT_MAX_SCORE_VALUE"),
		MaxErrorDetails: v.GetInt("IMPORT_MAX_ERROR_DETAILS"),
	}

	cfg.Analysis = AnalysisConfig{
		CacheEnabled: v.GetBool("ANALYSIS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYSIS_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "exam_ranking")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RANKING_BATCH_SIZE", 1000)
	v.SetDefault("RANKING_JOB_TIMEOUT", "20m")
	v.SetDefault("RANKING_WORKER_CONCURRENCY", 1)
	v.SetDefault("RANKING_WORKER_RETRIES", 3)
	v.SetDefault("RANKING_ASYNC_ENABLED", true)

	v.SetDefault("IMPORT_MAX_SCORE_VALUE", 200)
	v.SetDefault("IMPORT_MAX_ERROR_DETAILS", 20)

	v.SetDefault("ANALYSIS_CACHE_ENABLED", false)
	v.SetDefault("ANALYSIS_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
