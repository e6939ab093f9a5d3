// Package credential holds the ordered API-key pool used by the wage fetcher.
package credential

import (
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// Pool is an ordered set of API keys with a current position.
//
// A Pool is created once per run and owned by a single loop. It is not safe
// for concurrent use.
type Pool struct {
	keys      []string
	index     int
	streak    int
	rotations int
}

// NewPool returns a pool positioned at the first key.
func NewPool(keys []string) (*Pool, error) {
	if len(keys) == 0 {
		return nil, etlerr.New(etlerr.KindConfig, "credential pool", "no API keys configured", nil)
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Pool{keys: cp}, nil
}

// Current returns the active key.
func (p *Pool) Current() string { return p.keys[p.index] }

// Index returns the position of the active key.
func (p *Pool) Index() int { return p.index }

// Size returns the number of keys.
func (p *Pool) Size() int { return len(p.keys) }

// Rotations returns how many times Rotate was called during the run.
func (p *Pool) Rotations() int { return p.rotations }

// Rotate advances to the next key. It reports cycled=true once every key has
// been rotated away from since the last MarkSuccess, i.e. the whole pool is
// exhausted. With N keys that happens on the Nth consecutive rotation.
func (p *Pool) Rotate() (cycled bool) {
	p.index = (p.index + 1) % len(p.keys)
	p.rotations++
	p.streak++
	return p.streak >= len(p.keys)
}

// MarkSuccess records that the current key served a request.
func (p *Pool) MarkSuccess() { p.streak = 0 }

// Mask hides all but the last four characters of a key for logging.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
