package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_AcquireRelease(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute)
	ctx := context.Background()
	now := time.Now()

	first, err := limiter.Acquire(ctx, "u:1", 1, now)
	if err != nil || !first.Allowed {
		t.Fatalf("expected first acquire allowed, got %+v err=%v", first, err)
	}
	second, err := limiter.Acquire(ctx, "u:1", 1, now)
	if err != nil || second.Allowed {
		t.Fatalf("expected second acquire denied, got %+v err=%v", second, err)
	}
	if errRelease := limiter.Release(ctx, "u:1"); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	third, err := limiter.Acquire(ctx, "u:1", 1, now)
	if err != nil || !third.Allowed {
		t.Fatalf("expected acquire after release allowed, got %+v err=%v", third, err)
	}
}

func TestMemoryLimiter_ZeroLimitDeniesAndNegativeIsUnlimited(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute)
	ctx := context.Background()
	if res, _ := limiter.Acquire(ctx, "g:1", 0, time.Now()); res.Allowed {
		t.Fatalf("expected zero limit to deny")
	}
	for i := 0; i < 5; i++ {
		if res, _ := limiter.Acquire(ctx, "g:2", -1, time.Now()); !res.Allowed {
			t.Fatalf("expected unlimited claim to pass")
		}
	}
}

func TestMemoryLimiter_StaleEntryExpires(t *testing.T) {
	limiter := NewMemoryLimiter(time.Second)
	ctx := context.Background()
	now := time.Now()
	if res, _ := limiter.Acquire(ctx, "u:1", 1, now); !res.Allowed {
		t.Fatalf("expected allowed")
	}
	if res, _ := limiter.Acquire(ctx, "u:1", 1, now.Add(2*time.Second)); !res.Allowed {
		t.Fatalf("expected stale reservation to expire")
	}
}

func TestManager_AllOrNothing(t *testing.T) {
	m := NewManager(func() Settings { return Settings{TTL: time.Minute} }, nil, nil)
	ctx := context.Background()
	userKey := KeyFor(models.ScopeIndividual, "a")
	groupKey := KeyFor(models.ScopeGroup, "g")

	blocker, denied, err := m.Acquire(ctx, Claim{Key: groupKey, Limit: 1})
	if err != nil || denied != -1 {
		t.Fatalf("expected group slot, denied=%d err=%v", denied, err)
	}

	lease, denied, err := m.Acquire(ctx, Claim{Key: userKey, Limit: 5}, Claim{Key: groupKey, Limit: 1})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lease != nil || denied != 1 {
		t.Fatalf("expected group claim denied at index 1, got lease=%v denied=%d", lease, denied)
	}

	// the user slot taken before the denial must have been returned
	single, denied, err := m.Acquire(ctx, Claim{Key: userKey, Limit: 1})
	if err != nil || denied != -1 {
		t.Fatalf("expected user slot free, denied=%d err=%v", denied, err)
	}
	single.Release(ctx)
	single.Release(ctx)
	blocker.Release(ctx)
}

func TestManager_ConcurrentClaimsRespectLimit(t *testing.T) {
	m := NewManager(func() Settings { return Settings{TTL: time.Minute} }, nil, nil)
	ctx := context.Background()

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, denied, err := m.Acquire(ctx, Claim{Key: "u:x", Limit: 3})
			if err != nil || denied != -1 || lease == nil {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if allowed != 3 {
		t.Fatalf("expected exactly 3 concurrent slots, got %d", allowed)
	}
}

func TestManager_RedisUnavailableFallsBackToMemory(t *testing.T) {
	created := 0
	factory := func(options *redis.Options) *redis.Client {
		created++
		options.DialTimeout = 100 * time.Millisecond
		options.MaxRetries = -1
		return redis.NewClient(options)
	}
	settings := func() Settings {
		return Settings{RedisEnabled: true, RedisAddr: "127.0.0.1:1", TTL: time.Minute}
	}
	m := NewManager(settings, nil, factory)
	ctx := context.Background()

	lease, denied, err := m.Acquire(ctx, Claim{Key: "u:r", Limit: 1})
	if err != nil || denied != -1 || lease == nil {
		t.Fatalf("expected memory fallback to allow, denied=%d err=%v", denied, err)
	}
	if _, denied, _ = m.Acquire(ctx, Claim{Key: "u:r", Limit: 1}); denied != 0 {
		t.Fatalf("expected memory fallback to enforce limit, denied=%d", denied)
	}
	if created != 1 {
		t.Fatalf("expected breaker to stop reconnect attempts, factory called %d times", created)
	}
	lease.Release(ctx)
}

func TestLease_InFlightReportsObservedCount(t *testing.T) {
	manager := NewManager(func() Settings { return Settings{TTL: time.Minute} }, nil, nil)
	ctx := context.Background()
	key := KeyFor(models.ScopeIndividual, "user-1")

	first, denied, err := manager.Acquire(ctx, Claim{Key: key, Limit: 5})
	if err != nil || denied != -1 {
		t.Fatalf("acquire: denied=%d err=%v", denied, err)
	}
	second, _, _ := manager.Acquire(ctx, Claim{Key: key, Limit: 5}, Claim{Key: KeyFor(models.ScopeGroup, "g"), Limit: -1})
	if first.InFlight(key) != 1 || second.InFlight(key) != 2 {
		t.Fatalf("unexpected in-flight counts %d/%d", first.InFlight(key), second.InFlight(key))
	}
	if second.InFlight(KeyFor(models.ScopeGroup, "g")) != 0 {
		t.Fatalf("unlimited claims hold no slot")
	}
	first.Release(ctx)
	second.Release(ctx)
}
