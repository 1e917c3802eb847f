package config

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockFileReader implements FileReader for testing
type MockFileReader struct {
	files map[string]string // filename -> content
}

func (m MockFileReader) Open(filename string) (io.ReadCloser, error) {
	if content, exists := m.files[filename]; exists {
		return io.NopCloser(strings.NewReader(content)), nil
	}
	return nil, os.ErrNotExist
}

func (m MockFileReader) Stat(filename string) (os.FileInfo, error) {
	if _, exists := m.files[filename]; exists {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

var configEnvVars = []string{
	"OFF_BASE_URL", "PAGE_SIZE", "HTTP_TIMEOUT_SECONDS", "RATE_LIMIT_PER_MINUTE",
	"USER_AGENT", "GATEWAY_MOCK", "OFFLINE", "DATA_DIR", "PARQUET_URL", "PARQUET_PATH",
	"METADATA_PATH", "LOCK_FILE", "REFRESH_INTERVAL_HOURS", "DISABLE_REMOTE_CHECK",
	"IGNORE_LOCK", "CART_STORE", "CART_PATH", "CART_DB_PATH", "REDIS_URL", "CART_KEY",
	"DEBOUNCE_MS", "AUTH_TOKEN", "PORT", "ENV",
}

// clearConfigEnv unsets every variable Load reads and restores them afterwards
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := LoadWithFileReader(MockFileReader{files: map[string]string{}})

	assert.Equal(t, "https://world.openfoodfacts.org", cfg.BaseURL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.GatewayMock)
	assert.False(t, cfg.Offline)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "data/product-database.parquet", cfg.ParquetPath)
	assert.Equal(t, "data/metadata.json", cfg.MetadataPath)
	assert.Equal(t, "data/refresh.lock", cfg.LockFile)
	assert.Equal(t, CartStoreFile, cfg.CartStore)
	assert.Equal(t, "data/cart.json", cfg.CartPath)
	assert.Equal(t, "data/cart.db", cfg.CartDBPath)
	assert.Equal(t, "food-explorer-cart", cfg.CartKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce())
	assert.Equal(t, "super-secret-token", cfg.AuthToken)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoad_CustomValues(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("OFF_BASE_URL", "http://localhost:9000")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("DATA_DIR", "/custom/data")
	t.Setenv("CART_STORE", "redis")
	t.Setenv("GATEWAY_MOCK", "true")
	t.Setenv("DEBOUNCE_MS", "250")
	t.Setenv("REFRESH_INTERVAL_HOURS", "12")

	cfg := LoadWithFileReader(MockFileReader{files: map[string]string{}})

	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, "/custom/data/cart.json", cfg.CartPath)
	assert.Equal(t, "/custom/data/product-database.parquet", cfg.ParquetPath)
	assert.Equal(t, CartStoreRedis, cfg.CartStore)
	assert.True(t, cfg.GatewayMock)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 12*time.Hour, cfg.RefreshInterval())
}

func TestLoad_InvalidNumbersUseDefaults(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("PAGE_SIZE", "twenty")
	t.Setenv("GATEWAY_MOCK", "maybe")

	cfg := LoadWithFileReader(MockFileReader{files: map[string]string{}})

	assert.Equal(t, 20, cfg.PageSize)
	assert.False(t, cfg.GatewayMock)
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", false},
		{"development", true},
		{"", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.expected, cfg.IsDevelopment())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("with .env file", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ANOTHER_VAR", "")
		os.Unsetenv("ANOTHER_VAR")

		envContent := `# Test .env file
AUTH_TOKEN=test-token-from-env
PORT=9999

ANOTHER_VAR="value with spaces"
`
		mockReader := MockFileReader{files: map[string]string{".env": envContent}}

		loadEnvFileWithReader(mockReader)

		assert.Equal(t, "test-token-from-env", os.Getenv("AUTH_TOKEN"))
		assert.Equal(t, "9999", os.Getenv("PORT"))
		assert.Equal(t, "value with spaces", os.Getenv("ANOTHER_VAR"))

		// Values already in the environment win over the file
		os.Setenv("AUTH_TOKEN", "cli-override-token")
		loadEnvFileWithReader(mockReader)

		assert.Equal(t, "cli-override-token", os.Getenv("AUTH_TOKEN"))
		assert.Equal(t, "9999", os.Getenv("PORT"))
	})

	t.Run("without .env file", func(t *testing.T) {
		clearConfigEnv(t)
		os.Setenv("AUTH_TOKEN", "cli-token")

		loadEnvFileWithReader(MockFileReader{files: map[string]string{}})

		assert.Equal(t, "cli-token", os.Getenv("AUTH_TOKEN"))
		assert.Equal(t, "", os.Getenv("PORT"))
	})
}
