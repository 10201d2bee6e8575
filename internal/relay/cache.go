package relay

import (
	"log/slog"
	"sync"
	"time"
)

const DefaultTTL = 5000 * time.Millisecond

// Cache holds the most recent upstream response in a single slot.
type Cache struct {
	ttl time.Duration

	mu    sync.Mutex
	text  string
	setAt time.Time
	seq   uint64
	has   bool
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

func (c *Cache) Set(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	seq := c.seq
	c.text = text
	c.setAt = time.Now()
	c.has = true
	time.AfterFunc(c.ttl, func() {
		c.clear(seq)
	})
}

func (c *Cache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has {
		return "", false
	}
	if !time.Now().Before(c.setAt.Add(c.ttl)) {
		return "", false
	}
	return c.text, true
}

func (c *Cache) clear(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A later Set supersedes this timer.
	if seq != c.seq {
		return
	}
	c.has = false
	c.text = ""
	slog.Debug("relay response expired")
}
