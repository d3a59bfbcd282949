package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	NamenodeURL string
	AdminUser   string
	UsersRoot   string

	TrashIndexFile    string
	TrashRetention    time.Duration
	PurgeInitialDelay time.Duration
	PurgeInterval     time.Duration

	TypeFormatsFile string
	ThumbnailRoot   string
	MaxUploadSize   int64

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	SeedAdminUser     string
	SeedAdminPassword string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		NamenodeURL: getEnv("NAMENODE_URL", "http://localhost:9870"),
		AdminUser:   getEnv("HDFS_ADMIN_USER", "root"),
		UsersRoot:   getEnv("USERS_ROOT", "/users"),

		TrashIndexFile:    getEnv("TRASH_INDEX_FILE", "./state/trash.json"),
		TrashRetention:    getDuration("TRASH_RETENTION", 720*time.Hour),
		PurgeInitialDelay: getDuration("PURGE_INITIAL_DELAY", time.Minute),
		PurgeInterval:     getDuration("PURGE_INTERVAL", 5*time.Minute),

		TypeFormatsFile: strings.TrimSpace(os.Getenv("TYPE_FORMATS_FILE")),
		ThumbnailRoot:   getEnv("THUMBNAIL_ROOT", "./state/thumbnails"),
		MaxUploadSize:   getInt64("MAX_UPLOAD_SIZE", 1073741824),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 8)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:  getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: getDuration("JWT_REFRESH_TTL", 168*time.Hour),

		SeedAdminUser:     getEnv("SEED_ADMIN_USER", "admin"),
		SeedAdminPassword: strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if strings.TrimSpace(c.NamenodeURL) == "" {
		return fmt.Errorf("NAMENODE_URL cannot be empty")
	}

	if strings.TrimSpace(c.AdminUser) == "" {
		return fmt.Errorf("HDFS_ADMIN_USER cannot be empty")
	}

	if !strings.HasPrefix(c.UsersRoot, "/") || c.UsersRoot == "/" {
		return fmt.Errorf("USERS_ROOT must be an absolute path below the root")
	}

	if strings.TrimSpace(c.TrashIndexFile) == "" {
		return fmt.Errorf("TRASH_INDEX_FILE cannot be empty")
	}

	if c.TrashRetention <= 0 {
		return fmt.Errorf("TRASH_RETENTION must be positive")
	}

	if c.PurgeInterval <= 0 {
		return fmt.Errorf("PURGE_INTERVAL must be positive")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
