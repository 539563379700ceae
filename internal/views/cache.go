package views

import (
	"sync"
	"time"

	"github.com/videotube/backend/internal/models"
)

type profileEntry struct {
	profile models.ChannelProfile
	expires time.Time
}

// ProfileCache is a TTL-based in-memory cache for the viewer-independent part
// of channel profiles. All methods are safe on a nil receiver, which acts as
// a disabled cache.
type ProfileCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]profileEntry
}

// NewProfileCache constructs a profile cache retaining entries for ttl.
func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ProfileCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]profileEntry),
	}
}

func (c *ProfileCache) get(username string) (models.ChannelProfile, bool) {
	if c == nil {
		return models.ChannelProfile{}, false
	}

	c.mu.RLock()
	entry, ok := c.items[username]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return models.ChannelProfile{}, false
	}
	return entry.profile, true
}

func (c *ProfileCache) put(username string, profile models.ChannelProfile) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.items[username] = profileEntry{profile: profile, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *ProfileCache) invalidate(username string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.items, username)
	c.mu.Unlock()
}
