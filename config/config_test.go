package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "local", cfg.Identity.Provider)
				assert.Equal(t, "anthropic", cfg.LLM.Provider)
				assert.Equal(t, 0, cfg.LLM.MaxRetries)
				assert.Equal(t, 3, cfg.LLM.TranslationConcurrency)
				assert.Equal(t, int64(50*1024*1024), cfg.Media.MaxImageBytes)
				assert.Equal(t, int64(100*1024*1024), cfg.Media.MaxVideoBytes)
				assert.Equal(t, "none", cfg.Events.Broker)
				assert.False(t, cfg.Redis.Enabled)
				assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
				assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT":       "production",
				"SERVER_PORT":       "9000",
				"DATABASE_URL":      "postgres://u:p@db.example.com:5433/manuals?sslmode=require",
				"SESSION_SECRET":    strings.Repeat("s", 32),
				"ANTHROPIC_API_KEY": "sk-ant-xxxxx",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "host=db.example.com port=5433 database=manuals", cfg.Database.LogString())
				assert.Equal(t, "sk-ant-xxxxx", cfg.LLMAPIKey())
			},
		},
		{
			name: "gemini provider and nats broker",
			envVars: map[string]string{
				"LLM_PROVIDER":            "gemini",
				"GEMINI_API_KEY":          "g-key",
				"EVENTS_BROKER":           "nats",
				"TRANSLATION_CONCURRENCY": "6",
				"CORS_ALLOWED_ORIGINS":    "https://a.example.com, https://b.example.com,",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "g-key", cfg.LLMAPIKey())
				assert.Equal(t, "nats", cfg.Events.Broker)
				assert.Equal(t, 6, cfg.LLM.TranslationConcurrency)
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "custom timeouts and limits",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":   "60s",
				"SERVER_WRITE_TIMEOUT":  "90s",
				"DB_MAX_OPEN_CONNS":     "50",
				"MEDIA_MAX_IMAGE_BYTES": "1024",
				"RATE_LIMIT_CAPACITY":   "5",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, int64(1024), cfg.Media.MaxImageBytes)
				assert.Equal(t, 5, cfg.RateLimit.Capacity)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "production with default session secret",
			envVars: map[string]string{
				"ENVIRONMENT":       "production",
				"ANTHROPIC_API_KEY": "sk-ant-xxxxx",
			},
			wantErr: true,
		},
		{
			name: "production without LLM key",
			envVars: map[string]string{
				"ENVIRONMENT":    "production",
				"SESSION_SECRET": strings.Repeat("s", 32),
			},
			wantErr: true,
		},
		{
			name: "supabase without service key",
			envVars: map[string]string{
				"AUTH_PROVIDER": "supabase",
				"SUPABASE_URL":  "https://xyz.supabase.co",
			},
			wantErr: true,
		},
		{
			name: "unknown events broker",
			envVars: map[string]string{
				"EVENTS_BROKER": "kafka",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Session:       SessionConfig{Secret: DefaultSessionSecret, TTL: time.Hour},
		Identity:      IdentityConfig{Provider: "local"},
		LLM:           LLMConfig{Provider: "anthropic", TranslationConcurrency: 3},
		Media:         MediaConfig{MaxImageBytes: 1, MaxVideoBytes: 1},
		Events:        EventsConfig{Broker: "none"},
		Observability: ObservabilityConfig{LogLevel: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid development config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name:    "missing database user",
			mutate:  func(c *Config) { c.Database.User = "" },
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name:    "unknown identity provider",
			mutate:  func(c *Config) { c.Identity.Provider = "cognito" },
			wantErr: true,
			errMsg:  "AUTH_PROVIDER",
		},
		{
			name:    "unknown llm provider",
			mutate:  func(c *Config) { c.LLM.Provider = "openai" },
			wantErr: true,
			errMsg:  "LLM_PROVIDER",
		},
		{
			name:    "zero translation concurrency",
			mutate:  func(c *Config) { c.LLM.TranslationConcurrency = 0 },
			wantErr: true,
			errMsg:  "translation concurrency",
		},
		{
			name:    "non positive media limit",
			mutate:  func(c *Config) { c.Media.MaxVideoBytes = 0 },
			wantErr: true,
			errMsg:  "media size limits",
		},
		{
			name: "production with strong secret and key",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Session.Secret = strings.Repeat("x", 40)
				c.LLM.AnthropicAPIKey = "key"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	tests := []struct {
		environment string
		production  bool
		development bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"dev", false, true},
		{"staging", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.production, cfg.IsProduction())
			assert.Equal(t, tt.development, cfg.IsDevelopment())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")

	cfg.ConnectionString = "postgres://u:secret@db:5432/x"
	assert.Equal(t, "postgres://u:secret@db:5432/x", cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "secret")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		os.Clearenv()
		assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
		os.Setenv("TEST_INT", "42")
		assert.Equal(t, 42, getEnvAsInt("TEST_INT", 10))
		os.Setenv("TEST_INT", "not-a-number")
		assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
	})

	t.Run("int64", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("TEST_INT64", "104857600")
		assert.Equal(t, int64(104857600), getEnvAsInt64("TEST_INT64", 1))
	})

	t.Run("bool", func(t *testing.T) {
		os.Clearenv()
		assert.True(t, getEnvAsBool("TEST_BOOL", true))
		os.Setenv("TEST_BOOL", "false")
		assert.False(t, getEnvAsBool("TEST_BOOL", true))
		os.Setenv("TEST_BOOL", "not-a-bool")
		assert.True(t, getEnvAsBool("TEST_BOOL", true))
	})

	t.Run("duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("TEST_DURATION", "90s")
		assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
		os.Setenv("TEST_DURATION", "soon")
		assert.Equal(t, time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	})

	t.Run("list", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("TEST_LIST", " , ")
		assert.Equal(t, []string{"d"}, getEnvAsList("TEST_LIST", []string{"d"}))
	})
}
