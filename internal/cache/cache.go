package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "voidshop_cache_"
)

// Cache is a TTL key/value store over the profile data directory. Get
// treats missing, expired and unreadable entries identically (a miss) and
// never fails; Set always overwrites. Entries are disposable derived data,
// never the source of truth.
type Cache struct {
	dir string
	now func() time.Time
}

type entry struct {
	Data    json.RawMessage `json:"data"`
	Expires int64           `json:"expires"`
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, now: time.Now}, nil
}

func (c *Cache) Get(key string, dest any) bool {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	if c.now().UnixMilli() > e.Expires {
		return false
	}
	return json.Unmarshal(e.Data, dest) == nil
}

func (c *Cache) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	raw, err := json.Marshal(entry{
		Data:    payload,
		Expires: c.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return
	}
	os.WriteFile(c.path(key), raw, 0o644)
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, keyPrefix+sanitize(key)+".json")
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, key)
}
