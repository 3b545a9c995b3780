package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Token kinds.
const (
	TokenJWT    = "jwt"
	TokenPaseto = "paseto"
)

// Feed publish targets.
const (
	PublishFTP  = "ftp"
	PublishS3   = "s3"
	PublishFile = "file"
)

// devJWTSecret is only accepted when APP_ENV=dev.
const devJWTSecret = "shiurfinder-dev-secret"

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Email  EmailConfig
	Feed   FeedConfig
	Backup BackupConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
	// RateLimit is the per-IP request budget per minute across the API. Zero disables it.
	RateLimit     int
	MaxUploadSize int64
	// MetricsAddr moves /metrics to its own listener. When empty, /metrics
	// stays on the API port and only admins can read it.
	MetricsAddr string
}

type StoreConfig struct {
	Driver string
	// Fallback switches to the in-memory store when the database is unreachable.
	Fallback       bool
	SeedDemoData   bool
	ConnectTimeout time.Duration
	MongoURI       string
	MongoDatabase  string
	Postgres       PostgresConfig
}

type PostgresConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenKind string
	JWTSecret []byte
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey   []byte
	TokenTTL    time.Duration
	AdminEmails []string
	ResetTTL    time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	// SendmailPath selects a local sendmail binary instead of SMTP when set.
	SendmailPath string
	FrontendURL  string // base URL for reset links
}

type FeedConfig struct {
	Target       string
	Path         string // destination path on the publish target
	Title        string
	Link         string
	Description  string
	FetchTimeout time.Duration
	FTP          FTPConfig
	S3           S3Config
	LocalDir     string
}

type FTPConfig struct {
	Host     string
	User     string
	Password string
	Timeout  time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type BackupConfig struct {
	Dir          string
	MongodumpBin string
	PgDumpBin    string
}

// Load reads configuration from environment variables, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", getEnv("SERVER_PORT", "5000")),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:       getIntEnv("RATE_LIMIT_PER_MINUTE", 300),
			MaxUploadSize:   int64(getIntEnv("MAX_UPLOAD_BYTES", 10<<20)),
			MetricsAddr:     getEnv("METRICS_ADDR", ""),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
			Fallback:       getBoolEnv("STORE_FALLBACK_MEMORY", true),
			SeedDemoData:   getBoolEnv("SEED_DEMO_DATA", true),
			ConnectTimeout: getDurationEnv("STORE_CONNECT_TIMEOUT", 5*time.Second),
			MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase:  getEnv("MONGODB_DATABASE", "shiurfinder"),
			Postgres: PostgresConfig{
				Host:           getEnv("DB_HOST", "localhost"),
				Port:           getEnv("DB_PORT", "5432"),
				User:           getEnv("DB_USER", "postgres"),
				Password:       getEnv("DB_PASSWORD", "postgres"),
				DBName:         getEnv("DB_NAME", "shiurfinder"),
				SSLMode:        getEnv("DB_SSLMODE", "disable"),
				ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			},
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenKind:   strings.ToLower(getEnv("AUTH_TOKEN_KIND", TokenJWT)),
			JWTSecret:   []byte(getEnv("JWT_SECRET", "")),
			PasetoKey:   []byte(getEnv("PASETO_KEY", "")),
			TokenTTL:    getDurationEnv("AUTH_TOKEN_TTL", 7*24*time.Hour),
			AdminEmails: getSliceEnv("ADMIN_EMAILS", nil),
			ResetTTL:    getDurationEnv("RESET_TOKEN_TTL", time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			From:         getEnv("EMAIL_FROM", "noreply@shiurfinder.com"),
			SendmailPath: getEnv("SENDMAIL_PATH", ""),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		Feed: FeedConfig{
			Target:       strings.ToLower(getEnv("FEED_PUBLISH_TARGET", PublishFTP)),
			Path:         getEnv("FEED_PATH", "/public_html/feed.xml"),
			Title:        getEnv("FEED_TITLE", "My Favorite Shiurim"),
			Link:         getEnv("FEED_LINK", "https://shiurfinder.com"),
			Description:  getEnv("FEED_DESCRIPTION", "Favorite shiurim exported from ShiurFinder"),
			FetchTimeout: getDurationEnv("FEED_FETCH_TIMEOUT", 10*time.Second),
			FTP: FTPConfig{
				Host:     getEnv("FTP_HOST", ""),
				User:     getEnv("FTP_USER", ""),
				Password: getEnv("FTP_PASSWORD", ""),
				Timeout:  getDurationEnv("FTP_TIMEOUT", 30*time.Second),
			},
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Region:          getEnv("S3_REGION", "us-east-1"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				UsePathStyle:    getBoolEnv("S3_USE_PATH_STYLE", false),
			},
			LocalDir: getEnv("FEED_LOCAL_DIR", "./feeds"),
		},
		Backup: BackupConfig{
			Dir:          getEnv("BACKUP_DIR", "./backups"),
			MongodumpBin: getEnv("MONGODUMP_PATH", "mongodump"),
			PgDumpBin:    getEnv("PG_DUMP_PATH", "pg_dump"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of mongo, postgres, memory, got %q", c.Store.Driver)
	}

	switch c.Auth.TokenKind {
	case TokenJWT:
		if len(c.Auth.JWTSecret) == 0 {
			if !c.Server.IsDevelopment() {
				return errors.New("JWT_SECRET is required outside development")
			}
			c.Auth.JWTSecret = []byte(devJWTSecret)
		}
	case TokenPaseto:
		// Validate PASETO key length (must be 32 bytes for v4.local)
		if len(c.Auth.PasetoKey) != 32 {
			return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
		}
	default:
		return fmt.Errorf("AUTH_TOKEN_KIND must be jwt or paseto, got %q", c.Auth.TokenKind)
	}

	switch c.Feed.Target {
	case PublishFTP, PublishS3, PublishFile:
	default:
		return fmt.Errorf("FEED_PUBLISH_TARGET must be one of ftp, s3, file, got %q", c.Feed.Target)
	}

	return nil
}

// ConnectionString returns the lib/pq DSN.
func (c *PostgresConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *AuthConfig) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getDurationEnv accepts Go duration strings ("90s", "1h") or plain seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
