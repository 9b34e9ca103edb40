// Package metrics holds the prometheus collectors exported by the API client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes
const (
	RefreshSucceeded = "succeeded"
	RefreshFailed    = "failed"
	RefreshShared    = "shared"
)

type Client struct {
	requests *prometheus.CounterVec
	refresh  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the client collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Client, error) {
	c := &Client{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_api_requests_total",
			Help: "Backend requests issued by the API client, by method and status code (0 for transport failures).",
		}, []string{"method", "code"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_api_refresh_total",
			Help: "Access token refresh attempts triggered by 401 responses, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_api_request_duration_seconds",
			Help:    "Duration of individual backend attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	for _, col := range []prometheus.Collector{c.requests, c.refresh, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) ObserveRequest(method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (c *Client) ObserveRefresh(outcome string) {
	if c == nil {
		return
	}
	c.refresh.WithLabelValues(outcome).Inc()
}
