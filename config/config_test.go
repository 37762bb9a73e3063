package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PORT", "5002")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/calls")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGIN", "http://localhost:3000")
}

func TestLoadFromEnvMissingKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CORS_ORIGIN", "")

	cfg, err := LoadFromEnv()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "CORS_ORIGIN")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5002, cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.JWTExpiresIn)
	assert.Equal(t, "auth-token", cfg.Auth.CookieName)
	assert.Equal(t, "0 2 * * *", cfg.Tracker.Schedule)
	assert.Equal(t, 5, cfg.RateLimit.AuthMax)
	assert.Equal(t, "postgres", cfg.Storage)
}

func TestLoadFromEnvInvalidPort(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "abc")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "1d12h", want: 36 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "3600", want: time.Hour},
		{in: "xd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
