package config

import "time"

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend REST root every request path is joined to
// (e.g., "https://distribution.example.com/api")
func (API) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8000/api")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDuration("API_TIMEOUT", 30*time.Second)
}

// GetUserEndpoint is the "who am I" endpoint returning the SessionUser
func (API) GetUserEndpoint() string {
	return GetEnv("API_USER_ENDPOINT", "/users/")
}

// GetProbeEndpoint is the protected read used to validate a restored session
func (API) GetProbeEndpoint() string {
	return GetEnv("API_PROBE_ENDPOINT", "/dashboard/")
}

// GetRateLimit is the outbound requests per second, 0 disables limiting
func (API) GetRateLimit() float64 {
	return GetFloat("API_RATE_LIMIT", 0)
}

func (API) GetSingleFlightRefresh() bool {
	return GetBool("API_SINGLEFLIGHT_REFRESH", false)
}

func (API) GetDashboardTTL() time.Duration {
	return GetDuration("DASHBOARD_TTL", time.Minute)
}
