package crawl

import (
	"errors"
	"strconv"
	"strings"
)

// TagPrefix marks a run tag that pins a crawl to a specific provider key.
const TagPrefix = "firecrawl_"

// ErrNoKeys means no provider key is configured at all.
var ErrNoKeys = errors.New("no crawl provider keys configured")

// KeyPool is the ordered list of configured provider keys. Tag firecrawl_N
// selects the N-th key, 1-based.
type KeyPool struct {
	keys []string
}

// NewKeyPool drops empty entries so gaps in the configured slots do not
// produce blank keys.
func NewKeyPool(keys ...string) *KeyPool {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return &KeyPool{keys: clean}
}

func (p *KeyPool) Len() int { return len(p.keys) }

// Select returns the 0-based slot and key for a run's tags. Runs without a
// tag naming a configured key use the first key.
func (p *KeyPool) Select(tags []string) (int, string, error) {
	if len(p.keys) == 0 {
		return 0, "", ErrNoKeys
	}
	for _, tag := range tags {
		if n, ok := parseKeyTag(tag); ok && n <= len(p.keys) {
			return n - 1, p.keys[n-1], nil
		}
	}
	return 0, p.keys[0], nil
}

// TagForOffset spreads bulk runs across the pool. Offset 0 runs untagged on
// the default key; offset k runs on key (k mod size)+1.
func TagForOffset(offset, poolSize int) string {
	if poolSize <= 0 {
		return ""
	}
	slot := offset % poolSize
	if slot == 0 {
		return ""
	}
	return KeyTag(slot + 1)
}

func KeyTag(n int) string { return TagPrefix + strconv.Itoa(n) }

func parseKeyTag(tag string) (int, bool) {
	if !strings.HasPrefix(tag, TagPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(tag, TagPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
