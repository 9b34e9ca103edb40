// Package dashboard caches the dashboard summary for the console gateway.
package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/pkg/errors"
)

const (
	DefaultTTL      = 60 * time.Second
	defaultEndpoint = "/dashboard/"
)

// SessionEvents is implemented by the session store.
type SessionEvents interface {
	OnSessionEnd(fn func(sessions.EndReason))
}

// Entry is a cached payload and the time it was fetched.
type Entry struct {
	Payload   json.RawMessage
	FetchedAt time.Time
}

type Cache struct {
	api      *apiclient.Client
	ttl      time.Duration
	endpoint string
	nowTime  func() time.Time

	lock       sync.Mutex
	entry      *Entry
	generation uint64
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithEndpoint(path string) CacheOption {
	return func(c *Cache) {
		if path != "" {
			c.endpoint = path
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

func NewCache(api *apiclient.Client, options ...CacheOption) (*Cache, error) {
	if api == nil {
		return nil, errors.New("[NewCache] api client is required")
	}
	c := &Cache{
		api:      api,
		ttl:      DefaultTTL,
		endpoint: defaultEndpoint,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Attach clears the cache whenever the session ends.
func (c *Cache) Attach(events SessionEvents) {
	events.OnSessionEnd(func(sessions.EndReason) {
		c.Clear()
	})
}

// Get returns the cached payload, fetching it when missing or expired.
func (c *Cache) Get(ctx context.Context) (*Entry, error) {
	c.lock.Lock()
	if c.entry != nil && c.nowTime().Sub(c.entry.FetchedAt) < c.ttl {
		entry := c.entry
		c.lock.Unlock()
		return entry, nil
	}
	gen := c.generation
	c.lock.Unlock()

	resp, err := c.api.Get(ctx, c.endpoint)
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, errors.Errorf("[Cache.Get] %s returned invalid JSON", c.endpoint)
	}
	entry := &Entry{Payload: json.RawMessage(resp.Body), FetchedAt: c.nowTime()}

	c.lock.Lock()
	defer c.lock.Unlock()
	// A Clear while fetching means the payload belongs to an ended session.
	if gen == c.generation {
		c.entry = entry
	}
	return entry, nil
}

func (c *Cache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entry = nil
	c.generation++
}
