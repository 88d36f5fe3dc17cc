package reservation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// Settings configures the limiter backends.
type Settings struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	TTL           time.Duration
}

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() Settings

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
	ttl      time.Duration
}

// Claim is one scope's request to reserve a slot.
type Claim struct {
	Key   string
	Limit int
}

// Lease holds acquired slots until Release.
type Lease struct {
	held []heldSlot
	once sync.Once
}

type heldSlot struct {
	key      string
	limiter  Limiter
	inFlight int
}

// InFlight returns the in-flight count observed for key when its slot was
// acquired, including this lease. It is 0 for keys the lease does not hold.
func (l *Lease) InFlight(key string) int {
	if l == nil {
		return 0
	}
	for _, slot := range l.held {
		if slot.key == key {
			return slot.inFlight
		}
	}
	return 0
}

// Release frees every slot held by the lease. It is safe to call more than once.
func (l *Lease) Release(ctx context.Context) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		for i := len(l.held) - 1; i >= 0; i-- {
			slot := l.held[i]
			if errRelease := slot.limiter.Release(ctx, slot.key); errRelease != nil {
				log.WithError(errRelease).WithField("key", slot.key).Warn("reservation: release failed")
			}
		}
	})
}

// Manager selects a limiter backend and enforces in-flight limits.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memoryLimiter  Limiter
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLimiter   *RedisLimiter
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() Settings { return Settings{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memoryLimiter:  NewMemoryLimiter(provider().TTL),
		newRedisClient: newRedisClient,
	}
}

// Acquire reserves a slot for every claim or none. It returns the index of
// the first denied claim when not allowed.
func (m *Manager) Acquire(ctx context.Context, claims ...Claim) (*Lease, int, error) {
	lease := &Lease{}
	if m == nil {
		return lease, -1, nil
	}
	now := m.nowFn()
	cfg := m.provider()

	for i, claim := range claims {
		if claim.Key == "" || claim.Limit < 0 {
			continue
		}
		limiter := m.backend(ctx, cfg, now)
		result, errAcquire := limiter.Acquire(ctx, claim.Key, claim.Limit, now)
		if errAcquire != nil && limiter != m.memoryLimiter {
			m.tripBreaker(errAcquire, now)
			limiter = m.memoryLimiter
			result, errAcquire = limiter.Acquire(ctx, claim.Key, claim.Limit, now)
		}
		if errAcquire != nil {
			lease.Release(ctx)
			return nil, i, errAcquire
		}
		if !result.Allowed {
			lease.Release(ctx)
			return nil, i, nil
		}
		lease.held = append(lease.held, heldSlot{key: claim.Key, limiter: limiter, inFlight: result.InFlight})
	}
	return lease, -1, nil
}

func (m *Manager) backend(ctx context.Context, cfg Settings, now time.Time) Limiter {
	if !cfg.RedisEnabled {
		return m.memoryLimiter
	}
	if m.isBreakerActive(now) {
		return m.memoryLimiter
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return m.memoryLimiter
	}
	return limiter
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("reservation: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg Settings) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("reservation redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
		ttl:      cfg.TTL,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisCfg == nextCfg {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.client.Close()
		m.redisLimiter = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, nextCfg.prefix, nextCfg.ttl)
	m.redisCfg = nextCfg
	return m.redisLimiter, nil
}
