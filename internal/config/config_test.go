package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "FINNHUB_TOKEN", cfg.Quote.TokenEnv)
	assert.Equal(t, "", cfg.Quote.Token)
	assert.True(t, cfg.Report.Long)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
			errMsg:  "server.addr is required",
		},
		{
			name:    "unknown gin mode",
			mutate:  func(c *Config) { c.Server.Mode = "loud" },
			wantErr: true,
			errMsg:  "server.mode must be one of",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: true,
			errMsg:  "database.driver must be one of",
		},
		{
			name: "sql source needs dsn",
			mutate: func(c *Config) {
				c.Source.Type = "sql"
				c.Database.DSN = ""
			},
			wantErr: true,
			errMsg:  "database.dsn is required",
		},
		{
			name:    "zero quote timeout",
			mutate:  func(c *Config) { c.Quote.Timeout = 0 },
			wantErr: true,
			errMsg:  "quote.timeout must be positive",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Quote.Attempts = 0 },
			wantErr: true,
			errMsg:  "quote.attempts must be at least 1",
		},
		{
			name:    "rate limit without burst",
			mutate:  func(c *Config) { c.Quote.Burst = 0 },
			wantErr: true,
			errMsg:  "quote.burst must be at least 1",
		},
		{
			name: "rate limiting disabled",
			mutate: func(c *Config) {
				c.Quote.RateLimit = 0
				c.Quote.Burst = 0
			},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Quote.Workers = 0 },
			wantErr: true,
			errMsg:  "quote.workers must be at least 1",
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Source.Type = "csv" },
			wantErr: true,
			errMsg:  "source.type must be one of",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "chatty" },
			wantErr: true,
			errMsg:  "log.level must be one of",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errMsg:  "log.format must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "log.level")
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Quote.Token = "secret"
			cfg.Quote.CacheTTL = 45 * time.Second
			cfg.Database.DSN = "/var/lib/gains/gains.db"
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret")

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Server, loaded.Server)
			assert.Equal(t, cfg.Database, loaded.Database)
			assert.Equal(t, 45*time.Second, loaded.Quote.CacheTTL)
			assert.Equal(t, "", loaded.Quote.Token)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\nquote:\n  timeout: 2s\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Quote.Timeout)
	assert.Equal(t, 3, cfg.Quote.Attempts)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: shout\n"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GAINS_ADDR", ":7000")
	t.Setenv("GAINS_DB_DRIVER", "mysql")
	t.Setenv("GAINS_DB_DSN", "gains:pw@tcp(db:3306)/gains?parseTime=true")
	t.Setenv("GAINS_LOG_LEVEL", "debug")
	t.Setenv("GAINS_QUOTE_URL", "http://quotes.local/api")
	t.Setenv("FINNHUB_TOKEN", "tok-from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "gains:pw@tcp(db:3306)/gains?parseTime=true", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://quotes.local/api", cfg.Quote.BaseURL)
	assert.Equal(t, "tok-from-env", cfg.Quote.Token)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GAINS_TEST_TOKEN", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GAINS_TEST_TOKEN=from-dotenv\n"), 0600))

	path := filepath.Join(dir, "gains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quote:\n  token_env: GAINS_TEST_TOKEN\n"), 0644))

	// godotenv does not override variables that are already set, even empty.
	require.NoError(t, os.Unsetenv("GAINS_TEST_TOKEN"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Quote.Token)
}

func TestResolveTokenFromFile(t *testing.T) {
	t.Setenv("FINNHUB_TOKEN", "")

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  file-token\n"), 0600))

	cfg := Default()
	cfg.Quote.TokenFile = path
	require.NoError(t, cfg.ResolveToken())
	assert.Equal(t, "file-token", cfg.Quote.Token)

	t.Setenv("FINNHUB_TOKEN", "env-token")
	require.NoError(t, cfg.ResolveToken())
	assert.Equal(t, "env-token", cfg.Quote.Token)

	cfg.Quote.TokenFile = filepath.Join(t.TempDir(), "missing")
	t.Setenv("FINNHUB_TOKEN", "")
	assert.Error(t, cfg.ResolveToken())
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Quote.Token = "abc"

	qc := cfg.Quote.ClientConfig()
	assert.Equal(t, "abc", qc.Token)
	assert.Equal(t, cfg.Quote.BaseURL, qc.BaseURL)
	assert.Equal(t, cfg.Quote.Attempts, qc.Attempts)
	assert.Equal(t, cfg.Quote.CacheTTL, qc.CacheTTL)
}
