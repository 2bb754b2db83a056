package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Journal     JournalConfig
	Workflow    WorkflowConfig
	Reconcile   ReconcileConfig
	Assets      AssetsConfig
	Engines     EnginesConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type JournalConfig struct {
	Path           string
	RetentionHours int
}

type WorkflowConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration
}

type ReconcileConfig struct {
	Interval  time.Duration
	Threshold time.Duration
}

type AssetsConfig struct {
	PublicBaseURL    string
	AssetBaseURL     string
	SignedURLTTL     time.Duration
	ThumbWidth       int
	ThumbHeight      int
	MobileWidth      int
	JPEGQuality      int
	QRSize           int
	PreviewCharLimit int
}

type EnginesConfig struct {
	// TTSBackends maps voice tags to "url|serviceVoice" pairs, parsed from
	// TTS_BACKENDS=tag=url|voice,tag2=url2|voice2.
	TTSBackends map[string]TTSBackendConfig
	TTSTimeout  time.Duration
	CDNEndpoint string
	CDNToken    string
	CDNTimeout  time.Duration
}

type TTSBackendConfig struct {
	URL   string
	Voice string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "exhibitly-backend"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "exhibitly_db"),
			User:            getString("DB_USER", "exhibitly_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "exhibitly-backend"),
		},
		Journal: JournalConfig{
			Path:           getString("JOURNAL_PATH", "./data/journal.db"),
			RetentionHours: getInt("JOURNAL_RETENTION_HOURS", 72),
		},
		Workflow: WorkflowConfig{
			Interval:    getDuration("WORKFLOW_INTERVAL", 15*time.Second),
			BatchSize:   getInt("WORKFLOW_BATCH_SIZE", 25),
			MaxAttempts: getInt("WORKFLOW_MAX_ATTEMPTS", 5),
			Backoff:     getDuration("WORKFLOW_BACKOFF", 30*time.Second),
		},
		Reconcile: ReconcileConfig{
			Interval:  getDuration("RECONCILE_INTERVAL", 5*time.Minute),
			Threshold: getDuration("RECONCILE_THRESHOLD", 10*time.Minute),
		},
		Assets: AssetsConfig{
			PublicBaseURL:    getString("PUBLIC_BASE_URL", "https://view.exhibitly.example"),
			AssetBaseURL:     getString("ASSET_BASE_URL", "https://assets.exhibitly.example"),
			SignedURLTTL:     getDuration("SIGNED_URL_TTL", 15*time.Minute),
			ThumbWidth:       getInt("THUMB_WIDTH", 400),
			ThumbHeight:      getInt("THUMB_HEIGHT", 400),
			MobileWidth:      getInt("MOBILE_MAX_WIDTH", 1080),
			JPEGQuality:      getInt("JPEG_QUALITY", 85),
			QRSize:           getInt("QR_SIZE", 512),
			PreviewCharLimit: getInt("PREVIEW_CHAR_LIMIT", 1000),
		},
		Engines: EnginesConfig{
			TTSBackends: parseTTSBackends(os.Getenv("TTS_BACKENDS")),
			TTSTimeout:  getDuration("TTS_TIMEOUT", 30*time.Second),
			CDNEndpoint: getString("CDN_ENDPOINT", ""),
			CDNToken:    os.Getenv("CDN_TOKEN"),
			CDNTimeout:  getDuration("CDN_TIMEOUT", 10*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func parseTTSBackends(raw string) map[string]TTSBackendConfig {
	out := make(map[string]TTSBackendConfig)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tag, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		url, voice, _ := strings.Cut(value, "|")
		if voice == "" {
			voice = tag
		}
		out[tag] = TTSBackendConfig{URL: url, Voice: voice}
	}
	return out
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
