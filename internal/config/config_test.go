package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HARD953/distribut-sub001/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "API_BASE_URL", "API_TIMEOUT", "SESSION_BACKEND", "SESSION_PATH", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	c := config.New()

	require.Equal(t, ":8090", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8000/api", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, "/users/", c.GetUserEndpoint())
	require.Equal(t, "/dashboard/", c.GetProbeEndpoint())
	require.Equal(t, config.SessionBackendFile, c.GetSessionBackend())
	require.Equal(t, "session.json", filepath.Base(c.GetSessionPath()))
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:3000"))
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("API_TIMEOUT", "5")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("API_SINGLEFLIGHT_REFRESH", "true")
	t.Setenv("SESSION_BACKEND", "SQLite")
	t.Setenv("SESSION_PATH", "")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	c := config.New()

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, 2.5, c.GetRateLimit())
	require.True(t, c.GetSingleFlightRefresh())
	require.Equal(t, config.SessionBackendSQLite, c.GetSessionBackend())
	require.Equal(t, "session.db", filepath.Base(c.GetSessionPath()))
	require.Equal(t, "https://a.example.com, https://b.example.com", c.GetAllowedOrigins().String())
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(".env", []byte("APP_NAME=From File\nAPI_USER_ENDPOINT=/me/\n"), 0o600))
	t.Setenv("APP_NAME", "From Env")
	t.Setenv("API_USER_ENDPOINT", "")
	os.Unsetenv("API_USER_ENDPOINT")
	t.Cleanup(func() { os.Unsetenv("API_USER_ENDPOINT") })

	c := config.New()
	require.Equal(t, "From Env", c.GetAppName())
	require.Equal(t, "/me/", c.GetUserEndpoint())
}
