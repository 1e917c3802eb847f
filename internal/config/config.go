package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the food explorer
type Config struct {
	// Remote product API
	BaseURL            string
	PageSize           int
	HTTPTimeoutSeconds int
	RateLimitPerMinute int
	UserAgent          string
	GatewayMock        bool

	// Offline dataset config
	Offline              bool
	DataDir              string
	ParquetURL           string
	ParquetPath          string
	MetadataPath         string
	LockFile             string
	RefreshIntervalHours int
	DisableRemoteCheck   bool
	IgnoreLock           bool

	// Cart persistence
	CartStore  string
	CartPath   string
	CartDBPath string
	RedisURL   string
	CartKey    string

	// Search input
	DebounceMS int

	// Server
	AuthToken   string
	Port        string
	Environment string
}

// Cart store backends
const (
	CartStoreFile   = "file"
	CartStoreSQLite = "sqlite"
	CartStoreRedis  = "redis"
)

// FileReader abstracts access to the .env file so tests can supply one
type FileReader interface {
	Open(filename string) (io.ReadCloser, error)
	Stat(filename string) (os.FileInfo, error)
}

type osFileReader struct{}

func (osFileReader) Open(filename string) (io.ReadCloser, error) { return os.Open(filename) }
func (osFileReader) Stat(filename string) (os.FileInfo, error)   { return os.Stat(filename) }

// Load reads configuration from a .env file (if any) and the environment
func Load() *Config {
	return LoadWithFileReader(osFileReader{})
}

// LoadWithFileReader is Load with an injectable .env reader
func LoadWithFileReader(reader FileReader) *Config {
	loadEnvFileWithReader(reader)

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		BaseURL:              getEnv("OFF_BASE_URL", "https://world.openfoodfacts.org"),
		PageSize:             getEnvInt("PAGE_SIZE", 20),
		HTTPTimeoutSeconds:   getEnvInt("HTTP_TIMEOUT_SECONDS", 30),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		UserAgent:            getEnv("USER_AGENT", "FoodExplorer/1.0"),
		GatewayMock:          getEnvBool("GATEWAY_MOCK", false),
		Offline:              getEnvBool("OFFLINE", false),
		DataDir:              dataDir,
		ParquetURL:           getEnv("PARQUET_URL", "https://huggingface.co/datasets/openfoodfacts/product-database/resolve/main/food.parquet"),
		ParquetPath:          getEnv("PARQUET_PATH", filepath.Join(dataDir, "product-database.parquet")),
		MetadataPath:         getEnv("METADATA_PATH", filepath.Join(dataDir, "metadata.json")),
		LockFile:             getEnv("LOCK_FILE", filepath.Join(dataDir, "refresh.lock")),
		RefreshIntervalHours: getEnvInt("REFRESH_INTERVAL_HOURS", 24),
		DisableRemoteCheck:   getEnvBool("DISABLE_REMOTE_CHECK", false),
		IgnoreLock:           getEnvBool("IGNORE_LOCK", false),
		CartStore:            getEnv("CART_STORE", CartStoreFile),
		CartPath:             getEnv("CART_PATH", filepath.Join(dataDir, "cart.json")),
		CartDBPath:           getEnv("CART_DB_PATH", filepath.Join(dataDir, "cart.db")),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartKey:              getEnv("CART_KEY", "food-explorer-cart"),
		DebounceMS:           getEnvInt("DEBOUNCE_MS", 500),
		AuthToken:            getEnv("AUTH_TOKEN", "super-secret-token"),
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENV", "production"),
	}
}

// RefreshInterval returns the dataset refresh interval as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// HTTPTimeout returns the gateway request timeout. Zero disables it.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Debounce returns the search input debounce delay
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// IsDevelopment reports whether detailed errors may be returned to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFileWithReader applies .env entries that are not already set in the
// process environment, so values passed on the command line take precedence
func loadEnvFileWithReader(reader FileReader) {
	if _, err := reader.Stat(".env"); err != nil {
		return
	}

	f, err := reader.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return
	}

	for key, value := range values {
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
