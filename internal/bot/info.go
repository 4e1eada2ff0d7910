package bot

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/joelikes8/Random-bot/internal/roblox"
)

const defaultProfileCacheSize = 128

type cachedProfile struct {
	profile  roblox.Profile
	storedAt time.Time
}

// profileCache keeps recently shown profiles for /info-roblox. Entries older
// than ttl are treated as missing.
type profileCache struct {
	cache *lru.ARCCache
	ttl   time.Duration
	now   func() time.Time
}

func newProfileCache(size int, ttl time.Duration) (*profileCache, error) {
	if size <= 0 {
		size = defaultProfileCacheSize
	}
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &profileCache{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *profileCache) Get(accountID string) (roblox.Profile, bool) {
	if c.ttl <= 0 {
		return roblox.Profile{}, false
	}
	value, ok := c.cache.Get(accountID)
	if !ok {
		return roblox.Profile{}, false
	}
	entry := value.(cachedProfile)
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.cache.Remove(accountID)
		return roblox.Profile{}, false
	}
	return entry.profile, true
}

func (c *profileCache) Add(accountID string, profile roblox.Profile) {
	if c.ttl <= 0 {
		return
	}
	c.cache.Add(accountID, cachedProfile{profile: profile, storedAt: c.now()})
}
