// Package strokecache is a content-addressed, size- and age-bounded cache of
// generated word strokes shared by all synthesis tasks.
package strokecache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// Fingerprint identifies a generation request. Font size and alignment do
// not take part: they change placement, not the strokes.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintOf hashes the NFC-normalised, trimmed text with the generation
// parameters.
func FingerprintOf(text string, ts style.TextStyle) Fingerprint {
	h := sha256.New()
	h.Write([]byte(norm.NFC.String(strings.TrimSpace(text))))
	h.Write([]byte{0})
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(ts.Bias))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(ts.Scale))
	binary.BigEndian.PutUint64(buf[16:24], uint64(int64(ts.StyleIndex)))
	h.Write(buf[:])
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Params records what an entry was generated with.
type Params struct {
	Text       string  `json:"text"`
	Bias       float64 `json:"bias"`
	Scale      float64 `json:"scale"`
	StyleIndex int     `json:"style"`
}

// Entry is an immutable cached generation. Callers must not modify Strokes.
type Entry struct {
	Strokes     stroke.Sequence `json:"strokes"`
	GeneratedAt time.Time       `json:"generated_at"`
	Params      Params          `json:"params"`
}

// Config bounds the cache. Zero TTL disables age-based expiry.
type Config struct {
	Size int
	TTL  time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size        int   `json:"size"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Generations int64 `json:"generations"`
	Evictions   int64 `json:"evictions"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	lru   *expirable.LRU[Fingerprint, Entry]
	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	generations atomic.Int64
	evictions   atomic.Int64
}

func New(cfg Config) *Cache {
	c := &Cache{}
	c.lru = expirable.NewLRU[Fingerprint, Entry](cfg.Size, func(Fingerprint, Entry) {
		c.evictions.Add(1)
	}, cfg.TTL)
	return c
}

// Lookup returns the entry for fp if present and not expired.
func (c *Cache) Lookup(fp Fingerprint) (Entry, bool) {
	e, ok := c.lru.Get(fp)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Insert stores e unless fp is already cached, and returns the entry that is
// cached afterwards. Existing entries are never replaced.
func (c *Cache) Insert(fp Fingerprint, e Entry) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.lru.Peek(fp); ok {
		return existing
	}
	c.lru.Add(fp, e)
	return e
}

// GetOrGenerate returns the cached strokes for text and ts, generating them
// on a miss. Concurrent callers for the same fingerprint share one
// generation. A caller whose ctx ends stops waiting, but the generation
// itself runs to completion and is cached. Failures are not cached.
func (c *Cache) GetOrGenerate(ctx context.Context, text string, ts style.TextStyle, gen generator.Generator) (Entry, error) {
	fp := FingerprintOf(text, ts)
	if e, ok := c.Lookup(fp); ok {
		return e, nil
	}

	ch := c.group.DoChan(fp.String(), func() (any, error) {
		if e, ok := c.lru.Peek(fp); ok {
			return e, nil
		}
		c.generations.Add(1)
		seq, err := gen.Generate(context.WithoutCancel(ctx), text, ts)
		if err != nil {
			return nil, err
		}
		return c.Insert(fp, Entry{
			Strokes:     seq,
			GeneratedAt: time.Now(),
			Params: Params{
				Text:       text,
				Bias:       ts.Bias,
				Scale:      ts.Scale,
				StyleIndex: ts.StyleIndex,
			},
		}), nil
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Size:        c.lru.Len(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Generations: c.generations.Load(),
		Evictions:   c.evictions.Load(),
	}
}
