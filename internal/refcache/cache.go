// Package refcache memoizes the reference fingerprint.
//
// A Cache holds exactly one vector keyed by the reference asset's path,
// modification time and a version tag. Changing any of the three replaces the
// entry on the next Get. Concurrent misses for one key share a single
// computation, and failed computations are never stored.
package refcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/sync/singleflight"

	"soundcheck/internal/fingerprint"
	"soundcheck/internal/logging"
)

// ErrAssetMissing indicates the reference asset does not exist.
var ErrAssetMissing = errors.New("reference asset missing")

// ErrComputePanic wraps a panic raised by a ComputeFunc. singleflight would
// otherwise re-raise it on a goroutine nobody can recover.
var ErrComputePanic = errors.New("reference compute panicked")

// Key identifies one version of the reference asset.
type Key struct {
	Path    string
	ModTime time.Time
	Version string
}

// Digest returns a stable 64-bit hash of the key.
func (k Key) Digest() uint64 {
	return xxhash.ChecksumString64(k.Path + "\x00" + strconv.FormatInt(k.ModTime.UnixNano(), 10) + "\x00" + k.Version)
}

func (k Key) equal(other Key) bool {
	return k.Path == other.Path && k.Version == other.Version && k.ModTime.Equal(other.ModTime)
}

// KeyForFile stats path and builds its cache key.
func KeyForFile(path, version string) (Key, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Key{}, nil, fmt.Errorf("%w: %s", ErrAssetMissing, path)
		}
		return Key{}, nil, fmt.Errorf("stat reference asset: %w", err)
	}
	if info.IsDir() {
		return Key{}, nil, fmt.Errorf("%w: %s is a directory", ErrAssetMissing, path)
	}
	return Key{Path: path, ModTime: info.ModTime(), Version: version}, info, nil
}

// ComputeFunc produces the vector for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (fingerprint.Vector, error)

// Stats reports cache activity since construction.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Computes uint64 `json:"computes"`
	Cached   bool   `json:"cached"`
	Digest   string `json:"digest,omitempty"`
}

type entry struct {
	digest uint64
	key    Key
	vector fingerprint.Vector
}

// Cache is a single-entry fingerprint cache. The zero value is not usable;
// call New.
type Cache struct {
	logger *slog.Logger

	mu     sync.Mutex
	entry  *entry
	latest uint64
	group  singleflight.Group

	hits     atomic.Uint64
	misses   atomic.Uint64
	computes atomic.Uint64
}

// New returns an empty cache.
func New(logger *slog.Logger) *Cache {
	return &Cache{logger: logging.NewComponentLogger(logger, "refcache")}
}

// Get returns the vector for key, calling compute only when the stored entry
// belongs to a different key. The returned vector is a copy.
func (c *Cache) Get(ctx context.Context, key Key, compute ComputeFunc) (fingerprint.Vector, error) {
	digest := key.Digest()

	c.mu.Lock()
	if c.entry != nil && c.entry.digest == digest && c.entry.key.equal(key) {
		vector := c.entry.vector.Clone()
		c.mu.Unlock()
		c.hits.Add(1)
		return vector, nil
	}
	c.latest = digest
	c.mu.Unlock()
	c.misses.Add(1)

	flightKey := strconv.FormatUint(digest, 16)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		c.computes.Add(1)
		start := time.Now()
		// A caller abandoning the wait must not fail the other waiters.
		vector, err := safeCompute(context.WithoutCancel(ctx), compute)
		if err != nil {
			return nil, err
		}
		c.store(entry{digest: digest, key: key, vector: vector.Clone()})
		c.logger.Debug("reference fingerprint computed",
			logging.String("path", key.Path),
			logging.String("version", key.Version),
			logging.Int("dimensions", len(vector)),
			logging.Duration("elapsed", time.Since(start)),
		)
		return vector, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(fingerprint.Vector).Clone(), nil
	}
}

func safeCompute(ctx context.Context, compute ComputeFunc) (vector fingerprint.Vector, err error) {
	defer func() {
		if r := recover(); r != nil {
			vector, err = nil, fmt.Errorf("%w: %v", ErrComputePanic, r)
		}
	}()
	return compute(ctx)
}

// store keeps e unless a newer key has been requested since its compute
// began. Waiters on the older key still receive their vector.
func (c *Cache) store(e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.digest != c.latest {
		c.logger.Debug("discarding fingerprint for superseded reference",
			logging.String("path", e.key.Path),
			logging.String("version", e.key.Version),
		)
		return
	}
	if c.entry != nil && c.entry.digest != e.digest {
		c.logger.Info("reference fingerprint replaced",
			logging.String("previous_version", c.entry.key.Version),
			logging.String("version", e.key.Version),
			logging.String("path", e.key.Path),
		)
	}
	c.entry = &e
}

// Invalidate drops the stored entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.latest = 0
	c.mu.Unlock()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	stats := Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
	c.mu.Lock()
	if c.entry != nil {
		stats.Cached = true
		stats.Digest = strconv.FormatUint(c.entry.digest, 16)
	}
	c.mu.Unlock()
	return stats
}
