package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetUserEndpoint() string
	GetProbeEndpoint() string
	GetRateLimit() float64
	GetSingleFlightRefresh() bool
	GetDashboardTTL() time.Duration
}

type StorageConfig interface {
	GetSessionBackend() SessionBackend
	GetSessionPath() string
	GetSessionPassphrase() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Cors
}

// New loads .env and .env.<ENV> (when present) into the process environment
// and returns an env backed Config. Variables already set are never overridden.
func New() Config {
	loadDotEnv()
	return mainConfig{}
}

func loadDotEnv() {
	files := []string{".env"}
	if env := (EnvVars{}).GetEnv(); env != "" {
		files = append(files, ".env."+env)
	}
	for _, f := range files {
		_ = godotenv.Load(f) // godotenv.Load never overrides existing variables
	}
}
