package cellcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/digipin/internal/cache/keys"
	"github.com/mohammed-shakir/digipin/internal/cache/redisstore"
)

func newRedis(t *testing.T) (*redisstore.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func counter(payload string, n *atomic.Int32) func() ([]byte, error) {
	return func() ([]byte, error) {
		n.Add(1)
		return []byte(payload), nil
	}
}

func TestGetOrCompute_LRUOnly(t *testing.T) {
	c, err := New(Config{Size: 8}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var calls atomic.Int32
	ctx := context.Background()

	v, tier, err := c.GetOrCompute(ctx, "cell", "4P3-JM8-K4L6", counter("a", &calls))
	if err != nil || string(v) != "a" || tier != TierMiss {
		t.Fatalf("first = %q,%s,%v", v, tier, err)
	}
	// different spelling of the same code hits the same entry
	v, tier, err = c.GetOrCompute(ctx, "cell", "4p3jm8k4l6", counter("b", &calls))
	if err != nil || string(v) != "a" || tier != TierLRU {
		t.Fatalf("second = %q,%s,%v", v, tier, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("compute calls=%d want 1", calls.Load())
	}
}

func TestGetOrCompute_RedisTierSharedAcrossInstances(t *testing.T) {
	rc, mr := newRedis(t)
	cfg := Config{Size: 8, TTL: time.Hour, Version: "1"}
	ctx := context.Background()
	var calls atomic.Int32

	a, _ := New(cfg, rc, nil)
	if _, tier, err := a.GetOrCompute(ctx, "cell", "39J49LL8T4", counter("payload", &calls)); err != nil || tier != TierMiss {
		t.Fatalf("a: tier=%s err=%v", tier, err)
	}
	key := keys.Key("cell", "39J49LL8T4", "1")
	if got, err := mr.Get(key); err != nil || got != "payload" {
		t.Fatalf("redis value=%q err=%v", got, err)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("ttl=%v want 1h", ttl)
	}

	b, _ := New(cfg, rc, nil)
	v, tier, err := b.GetOrCompute(ctx, "cell", "39J-49L-L8T4", counter("other", &calls))
	if err != nil || tier != TierRedis || string(v) != "payload" {
		t.Fatalf("b = %q,%s,%v", v, tier, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("compute calls=%d want 1", calls.Load())
	}
	if b.Len() != 1 {
		t.Fatalf("redis hit should populate lru, len=%d", b.Len())
	}
}

type brokenRemote struct{}

func (brokenRemote) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenRemote) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestGetOrCompute_RemoteFailureDegradesToCompute(t *testing.T) {
	c, _ := New(Config{Size: 8}, brokenRemote{}, nil)
	var calls atomic.Int32
	v, tier, err := c.GetOrCompute(context.Background(), "cell", "FFFFFFFFFF", counter("x", &calls))
	if err != nil || tier != TierMiss || string(v) != "x" {
		t.Fatalf("got %q,%s,%v", v, tier, err)
	}
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	c, _ := New(Config{Size: 8}, nil, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "cell", "X", func() ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed compute must not be cached, len=%d", c.Len())
	}
}

func TestGetOrCompute_ConcurrentMissesShareCompute(t *testing.T) {
	c, _ := New(Config{Size: 8}, nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrCompute(context.Background(), "cell", "TTTTTTTTTT", compute)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("compute calls=%d want 1", n)
	}
}
