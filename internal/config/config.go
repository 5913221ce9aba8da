package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Storage    StorageConfig    `json:"storage"`
	GCS        GCSConfig        `json:"gcs"`
	Redis      RedisConfig      `json:"redis"`
	Submission SubmissionConfig `json:"submission"`
	Geo        GeoConfig        `json:"geo"`
	Webhook    WebhookConfig    `json:"webhook"`
	Worker     WorkerConfig     `json:"worker"`
	Sheets     SheetsConfig     `json:"sheets"`
	Gotenberg  GotenbergConfig  `json:"gotenberg"`
	Admin      AdminConfig      `json:"admin"`
}

type StorageConfig struct {
	Type      string `json:"type"`       // "gcs" or "local"
	LocalPath string `json:"local_path"` // Path for local storage (e.g., "./storage")
	LocalURL  string `json:"local_url"`  // Base URL for local storage (e.g., "http://localhost:8081/files")
	SecretKey string `json:"secret_key"` // Secret key for signing local URLs
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
	BaseURL     string `json:"base_url"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"` // "postgres" or "mysql"
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
}

type GCSConfig struct {
	BucketName      string `json:"bucket_name"`
	ProjectID       string `json:"project_id"`
	CredentialsPath string `json:"credentials_path"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SubmissionConfig controls the public ingestion endpoint.
type SubmissionConfig struct {
	APIKeys              []string `json:"-"`
	DefaultMaxFileSizeMB int      `json:"default_max_file_size_mb"`
	MaxRequestMB         int      `json:"max_request_mb"`
}

type GeoConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

type WebhookConfig struct {
	Queue          string        `json:"queue"` // "memory" or "redis"
	PollInterval   time.Duration `json:"poll_interval"`
	BatchSize      int           `json:"batch_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

type WorkerConfig struct {
	Workers     int           `json:"workers"`
	QueueSize   int           `json:"queue_size"`
	MaxAttempts int           `json:"max_attempts"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

type SheetsConfig struct {
	CredentialsPath string `json:"credentials_path"` // empty disables spreadsheet sync
}

type GotenbergConfig struct {
	URL     string `json:"url"` // empty disables PDF receipts
	Timeout string `json:"timeout"`
}

type AdminConfig struct {
	APIKey string `json:"-"`
}

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
	// Cloud SQL Unix socket support
	if len(d.Host) > 0 && d.Host[0] == '/' {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.User, d.Password, d.DBName)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

// findProjectRoot finds the project root by looking for go.mod file
func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func Load() (*Config, error) {
	envPaths := []string{}

	if projectRoot := findProjectRoot(); projectRoot != "" {
		envPaths = append(envPaths, filepath.Join(projectRoot, ".env"))
	}

	// Fallback paths
	envPaths = append(envPaths, "../../.env", ".env")

	loaded := false
	for _, envPath := range envPaths {
		if err := godotenv.Load(envPath); err == nil {
			loaded = true
			break
		}
	}

	if !loaded {
		fmt.Printf("Failed to load .env file from any location, using system environment variables\n")
	}

	driver := getEnv("DB_DRIVER", "postgres")
	defaultPort := "5432"
	if driver == "mysql" {
		defaultPort = "3306"
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8081"),
			Environment: getEnv("ENVIRONMENT", "development"),
			BaseURL:     getEnv("BASE_URL", ""),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", defaultPort),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "heysheet"),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./storage"),
			LocalURL:  getEnv("STORAGE_LOCAL_URL", "http://localhost:8081/files"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		},
		GCS: GCSConfig{
			BucketName:      getEnv("GCS_BUCKET_NAME", ""),
			ProjectID:       getEnv("GOOGLE_CLOUD_PROJECT", ""),
			CredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Submission: SubmissionConfig{
			APIKeys:              splitList(getEnv("HEYSHEET_API_KEYS", "")),
			DefaultMaxFileSizeMB: getEnvInt("DEFAULT_MAX_FILE_SIZE_MB", 5),
			MaxRequestMB:         getEnvInt("MAX_REQUEST_MB", 0), // 0 derives the cap from the largest plan limit
		},
		Geo: GeoConfig{
			URL:     getEnv("GEO_LOOKUP_URL", "https://ipinfo.io"),
			Token:   getEnv("GEO_LOOKUP_TOKEN", ""),
			Timeout: getEnvDuration("GEO_LOOKUP_TIMEOUT", 3*time.Second),
		},
		Webhook: WebhookConfig{
			Queue:          getEnv("WEBHOOK_QUEUE", "memory"),
			PollInterval:   getEnvDuration("WEBHOOK_POLL_INTERVAL", time.Second),
			BatchSize:      getEnvInt("WEBHOOK_BATCH_SIZE", 50),
			RequestTimeout: getEnvDuration("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			Workers:     getEnvInt("WORKER_COUNT", 4),
			QueueSize:   getEnvInt("WORKER_QUEUE_SIZE", 256),
			MaxAttempts: getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvDuration("WORKER_RETRY_DELAY", 5*time.Second),
		},
		Sheets: SheetsConfig{
			CredentialsPath: getEnv("SHEETS_CREDENTIALS_PATH", ""),
		},
		Gotenberg: GotenbergConfig{
			URL:     getEnv("GOTENBERG_URL", ""),
			Timeout: getEnv("GOTENBERG_TIMEOUT", "30s"),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
	}

	if config.Storage.Type != "local" && config.Storage.Type != "gcs" {
		return nil, fmt.Errorf("unsupported STORAGE_TYPE %q", config.Storage.Type)
	}
	if config.Webhook.Queue != "memory" && config.Webhook.Queue != "redis" {
		return nil, fmt.Errorf("unsupported WEBHOOK_QUEUE %q", config.Webhook.Queue)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		fmt.Printf("Warning: invalid integer for %s=%q, using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("Warning: invalid duration for %s=%q, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
