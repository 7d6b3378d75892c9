package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromJSONAndDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"JWTSecret": "from-file", "AppPort": "8080", "TokenTTLHours": 2},
		"database": {"Dialect": "postgres", "Name": "feed"},
		"redis": {"Enabled": true, "AdjacencyTTLSeconds": 30},
		"feed": {"MaxLimit": 50}
	}`)
	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", c.JWTSecret)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.Equal(t, "postgres", c.DBDialect)
	assert.Equal(t, "5432", c.DBPort)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 30*time.Second, c.AdjacencyTTL)
	assert.Equal(t, 10, c.FeedDefaultLimit)
	assert.Equal(t, 50, c.FeedMaxLimit)
	assert.Equal(t, 8, c.BootstrapFriends)
	assert.Contains(t, c.DSN(), "dbname=feed")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"app": {"JWTSecret": "from-file"}}`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BOOTSTRAP_FRIENDS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, 3, c.BootstrapFriends)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, "mysql", c.DBDialect)
	assert.Contains(t, c.DSN(), "@tcp(127.0.0.1:3306)/socialfeed")
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrMissingJWTSecret)

	c := AppConfig{JWTSecret: "s", DBDialect: "oracle"}
	assert.Error(t, c.Validate())
}

func TestInvalidJSON(t *testing.T) {
	_, err := LoadFrom(writeConfig(t, `{"app":`))
	assert.Error(t, err)
}

func TestDatabaseURIWins(t *testing.T) {
	c := AppConfig{DatabaseURI: "postgres://x", DBDialect: "postgres"}
	assert.Equal(t, "postgres://x", c.DSN())
}
