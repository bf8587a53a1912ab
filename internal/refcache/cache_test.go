package refcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"soundcheck/internal/fingerprint"
)

func counting(calls *atomic.Int32, v fingerprint.Vector) ComputeFunc {
	return func(context.Context) (fingerprint.Vector, error) {
		calls.Add(1)
		return v.Clone(), nil
	}
}

func TestGetHitAvoidsRecompute(t *testing.T) {
	cache := New(nil)
	key := Key{Path: "/ref.mp3", ModTime: time.Unix(100, 0), Version: "v1"}
	var calls atomic.Int32
	compute := counting(&calls, fingerprint.Vector{1, 2, 3})

	for range 3 {
		got, err := cache.Get(context.Background(), key, compute)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if len(got) != 3 || got[0] != 1 {
			t.Fatalf("unexpected vector: %v", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one compute, got %d", calls.Load())
	}
	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || !stats.Cached {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestKeyChangeInvalidates(t *testing.T) {
	cache := New(nil)
	var calls atomic.Int32
	compute := counting(&calls, fingerprint.Vector{1})
	base := Key{Path: "/ref.mp3", ModTime: time.Unix(100, 0), Version: "v1"}

	variants := []Key{
		base,
		{Path: base.Path, ModTime: base.ModTime, Version: "v2"},
		{Path: base.Path, ModTime: time.Unix(200, 0), Version: "v2"},
		{Path: "/other.mp3", ModTime: time.Unix(200, 0), Version: "v2"},
	}
	for i, key := range variants {
		if _, err := cache.Get(context.Background(), key, compute); err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if int(calls.Load()) != i+1 {
			t.Fatalf("expected %d computes after key %d, got %d", i+1, i, calls.Load())
		}
	}
	// Returning to the first key recomputes: only one entry is kept.
	if _, err := cache.Get(context.Background(), base, compute); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected single-entry eviction, got %d computes", calls.Load())
	}
}

func TestComputeErrorIsNotCached(t *testing.T) {
	cache := New(nil)
	key := Key{Path: "/ref.mp3", Version: "v1"}
	boom := errors.New("decode failed")
	var calls atomic.Int32
	failing := func(context.Context) (fingerprint.Vector, error) {
		calls.Add(1)
		return nil, boom
	}

	if _, err := cache.Get(context.Background(), key, failing); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if cache.Stats().Cached {
		t.Fatal("expected failed compute not to be stored")
	}
	if _, err := cache.Get(context.Background(), key, counting(&calls, fingerprint.Vector{4})); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry after failure, got %d calls", calls.Load())
	}
}

func TestReturnedVectorIsACopy(t *testing.T) {
	cache := New(nil)
	key := Key{Path: "/ref.mp3"}
	var calls atomic.Int32
	first, _ := cache.Get(context.Background(), key, counting(&calls, fingerprint.Vector{7, 8}))
	first[0] = -1
	second, _ := cache.Get(context.Background(), key, counting(&calls, fingerprint.Vector{7, 8}))
	if second[0] != 7 {
		t.Fatalf("cache entry was mutated through a returned vector: %v", second)
	}
}

func TestConcurrentMissesShareComputation(t *testing.T) {
	cache := New(nil)
	key := Key{Path: "/ref.mp3", Version: "v1"}
	release := make(chan struct{})
	var calls atomic.Int32
	slow := func(context.Context) (fingerprint.Vector, error) {
		calls.Add(1)
		<-release
		return fingerprint.Vector{1, 1}, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), key, slow); err != nil {
				errs <- err
			}
		}()
	}
	// Give the goroutines a moment to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Get returned error: %v", err)
	}
	// Late arrivals may hit the stored entry instead; none may compute twice.
	if calls.Load() != 1 {
		t.Fatalf("expected one shared compute, got %d", calls.Load())
	}
}

func TestGetHonoursCallerCancellation(t *testing.T) {
	cache := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	slow := func(context.Context) (fingerprint.Vector, error) {
		close(started)
		<-release
		return fingerprint.Vector{1}, nil
	}
	go func() {
		<-started
		cancel()
	}()
	if _, err := cache.Get(ctx, Key{Path: "/ref.mp3"}, slow); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestKeyForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.wav")
	if _, _, err := KeyForFile(path, "v1"); !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("expected ErrAssetMissing, got %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	key, info, err := KeyForFile(path, "v1")
	if err != nil {
		t.Fatalf("KeyForFile returned error: %v", err)
	}
	if key.Path != path || key.Version != "v1" || !key.ModTime.Equal(info.ModTime()) {
		t.Fatalf("unexpected key: %+v", key)
	}

	later := info.ModTime().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	touched, _, err := KeyForFile(path, "v1")
	if err != nil {
		t.Fatalf("KeyForFile returned error: %v", err)
	}
	if touched.Digest() == key.Digest() {
		t.Fatal("expected mtime change to alter the digest")
	}
}

func TestComputePanicBecomesError(t *testing.T) {
	cache := New(nil)
	key := Key{Path: "/ref.mp3", ModTime: time.Unix(1, 0)}
	_, err := cache.Get(context.Background(), key, func(context.Context) (fingerprint.Vector, error) {
		panic("boom")
	})
	if !errors.Is(err, ErrComputePanic) {
		t.Fatalf("expected ErrComputePanic, got %v", err)
	}
	if cache.Stats().Cached {
		t.Fatal("panicking compute must not populate the cache")
	}
}

func TestSupersededComputeKeepsNewerEntry(t *testing.T) {
	cache := New(nil)
	ctx := context.Background()
	old := Key{Path: "/ref.mp3", ModTime: time.Unix(100, 0), Version: "v1"}
	current := Key{Path: "/ref.mp3", ModTime: time.Unix(200, 0), Version: "v1"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan fingerprint.Vector, 1)
	go func() {
		v, _ := cache.Get(ctx, old, func(context.Context) (fingerprint.Vector, error) {
			close(started)
			<-release
			return fingerprint.Vector{1}, nil
		})
		done <- v
	}()
	<-started

	var calls atomic.Int32
	if _, err := cache.Get(ctx, current, counting(&calls, fingerprint.Vector{2})); err != nil {
		t.Fatalf("Get current: %v", err)
	}
	close(release)
	if v := <-done; len(v) != 1 || v[0] != 1 {
		t.Fatalf("old caller expected its own vector, got %v", v)
	}

	got, err := cache.Get(ctx, current, counting(&calls, fingerprint.Vector{2}))
	if err != nil {
		t.Fatalf("Get current again: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected current vector, got %v", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected current key computed once, got %d", calls.Load())
	}
}
