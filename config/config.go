package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
)

// Config is read once at startup from the environment (after godotenv.Load).
type Config struct {
	Port          string
	KVBackend     string
	Database      DatabaseConfig
	PebblePath    string
	SaveDebounce  time.Duration
	SessionIdle   time.Duration
	JanitorEvery  time.Duration
	JWTSecret     string
	PublicBaseURL string
	MaxUpload     int64
	UploadRPS     float64
	UploadBurst   int
	LogLevel      string
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// DSN builds the lib/pq connection string. Credentials are escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func Load() (Config, error) {
	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		KVBackend: strings.ToLower(getEnv("KV_BACKEND", BackendPostgres)),
		Database: DatabaseConfig{
			User:     getEnv("user", ""),
			Password: getEnv("password", ""),
			Host:     getEnv("host", "localhost"),
			Port:     getEnv("port", "5432"),
			Name:     getEnv("dbname", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		PebblePath:    getEnv("PEBBLE_PATH", "./data/giftletter"),
		JWTSecret:     getEnv("GIFT_JWT_SECRET", ""),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SaveDebounce, err = getDuration("SAVE_DEBOUNCE", time.Second); err != nil {
		return cfg, err
	}
	if cfg.SessionIdle, err = getDuration("SESSION_IDLE_TTL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.JanitorEvery, err = getDuration("JANITOR_INTERVAL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.MaxUpload, err = getInt64("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return cfg, err
	}
	if cfg.UploadRPS, err = getFloat("UPLOAD_RPS", 2); err != nil {
		return cfg, err
	}
	burst, err := getInt64("UPLOAD_BURST", 5)
	if err != nil {
		return cfg, err
	}
	cfg.UploadBurst = int(burst)

	switch cfg.KVBackend {
	case BackendPostgres, BackendPebble, BackendMemory:
	default:
		return cfg, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("GIFT_JWT_SECRET environment variable not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
