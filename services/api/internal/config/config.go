package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the config file read when PILLID_CONFIG is unset.
var ConfigPath = "config.yaml"

const minJWTSecretLen = 32

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	LogLevel                string   `yaml:"logLevel"`
	DatabaseURL             string   `yaml:"databaseURL"`
	RedisAddr               string   `yaml:"redisAddr"`
	RedisPassword           string   `yaml:"redisPassword"`
	JWTSecret               string   `yaml:"jwtSecret"`
	JWTIssuer               string   `yaml:"jwtIssuer"`
	JWTAudience             string   `yaml:"jwtAudience"`
	JWTLeeway               string   `yaml:"jwtLeeway"`
	SessionTTL              string   `yaml:"sessionTTL"`
	VisionAPIKey            string   `yaml:"visionAPIKey"`
	VisionBaseURL           string   `yaml:"visionBaseURL"`
	OpenFDAAPIKey           string   `yaml:"openFDAAPIKey"`
	OpenFDABaseURL          string   `yaml:"openFDABaseURL"`
	MinioEndpoint           string   `yaml:"minioEndpoint"`
	MinioAccessKey          string   `yaml:"minioAccessKey"`
	MinioSecretKey          string   `yaml:"minioSecretKey"`
	MinioBucket             string   `yaml:"minioBucket"`
	MinioUseSSL             bool     `yaml:"minioUseSSL"`
	DataDir                 string   `yaml:"dataDir"`
	MaxImageBytes           int64    `yaml:"maxImageBytes"`
	ImageURLTTL             string   `yaml:"imageURLTTL"`
	CORSOrigins             []string `yaml:"corsOrigins"`
	TrustedProxyCIDRs       []string `yaml:"trustedProxyCidrs"`
	AuthRateLimitPerMinute  int      `yaml:"authRateLimitPerMinute"`
	ScanRateLimitPerMinute  int      `yaml:"scanRateLimitPerMinute"`
	ReminderSchedulerActive bool     `yaml:"reminderSchedulerActive"`
}

// Load reads .env (if present), then the YAML file at path, PILLID_CONFIG or
// config.yaml, then environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("PILLID_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	strs := []struct {
		env string
		dst *string
	}{
		{"PILLID_PORT", &cfg.Port},
		{"PILLID_LOG_LEVEL", &cfg.LogLevel},
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"PILLID_JWT_SECRET", &cfg.JWTSecret},
		{"JWT_ISSUER", &cfg.JWTIssuer},
		{"JWT_AUDIENCE", &cfg.JWTAudience},
		{"JWT_LEEWAY", &cfg.JWTLeeway},
		{"PILLID_SESSION_TTL", &cfg.SessionTTL},
		{"GOOGLE_VISION_API_KEY", &cfg.VisionAPIKey},
		{"OPENFDA_API_KEY", &cfg.OpenFDAAPIKey},
		{"MINIO_ENDPOINT", &cfg.MinioEndpoint},
		{"MINIO_ACCESS_KEY", &cfg.MinioAccessKey},
		{"MINIO_SECRET_KEY", &cfg.MinioSecretKey},
		{"MINIO_BUCKET", &cfg.MinioBucket},
		{"PILLID_DATA_DIR", &cfg.DataDir},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(os.Getenv(s.env)); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("PILLID_MAX_IMAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxImageBytes = n
		}
	}
	if v := os.Getenv("PILLID_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("PILLID_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("PILLID_AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.AuthRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("PILLID_SCAN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.ScanRateLimitPerMinute = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "24h"
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	if cfg.ImageURLTTL == "" {
		cfg.ImageURLTTL = "15m"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for session revocation and rate limiting")
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("config: jwtSecret must be at least %d bytes (PILLID_JWT_SECRET)", minJWTSecretLen)
	}
	if cfg.VisionAPIKey == "" {
		return errors.New("config: visionAPIKey is required (GOOGLE_VISION_API_KEY)")
	}
	if cfg.MinioEndpoint == "" && cfg.DataDir == "" {
		return errors.New("config: either minioEndpoint or dataDir is required for scan images")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required with minioEndpoint")
	}
	if cfg.MaxImageBytes < 0 {
		return errors.New("config: maxImageBytes must not be negative")
	}
	if cfg.AuthRateLimitPerMinute < 0 || cfg.ScanRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for _, d := range []struct{ name, value string }{
		{"sessionTTL", cfg.SessionTTL},
		{"jwtLeeway", cfg.JWTLeeway},
		{"imageURLTTL", cfg.ImageURLTTL},
	} {
		if _, err := ParseDuration(d.name, d.value); err != nil {
			return err
		}
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration setting. Empty means zero.
func ParseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return d, nil
}
