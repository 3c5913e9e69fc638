package cache

import (
	"sync"
	"time"
)

// Result is the outcome of the latest run of one job.
type Result struct {
	At       time.Time     `json:"at"`
	RunID    string        `json:"run_id"`
	Host     string        `json:"host"`
	Status   string        `json:"status"`
	Files    int           `json:"files"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
	Err      string        `json:"error,omitempty"`
}

// Cache is the interface used by the runner and the status endpoint.
type Cache interface {
	Set(job string, r Result)
	Snapshot() map[string]Result
}

// MemCache is an in-memory implementation of Cache.
type MemCache struct {
	mu   sync.RWMutex
	data map[string]Result
}

func NewMemCache() *MemCache {
	return &MemCache{
		data: make(map[string]Result),
	}
}

func (c *MemCache) Set(job string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[job] = r
}

func (c *MemCache) Snapshot() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Result, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}
