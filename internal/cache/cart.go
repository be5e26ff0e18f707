package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type memoryCart struct {
	lines     map[string]int
	expiresAt time.Time
}

// MemoryCartStore keeps carts in process memory; idle carts expire after ttl.
type MemoryCartStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	carts map[string]*memoryCart
	now   func() time.Time
}

func NewMemoryCartStore(ttl time.Duration) *MemoryCartStore {
	return &MemoryCartStore{ttl: ttl, carts: make(map[string]*memoryCart), now: time.Now}
}

// cart returns the live cart for id, creating it when create is set. Callers
// hold mu.
func (s *MemoryCartStore) cart(id string, create bool) *memoryCart {
	c, ok := s.carts[id]
	if ok && s.ttl > 0 && s.now().After(c.expiresAt) {
		delete(s.carts, id)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		c = &memoryCart{lines: make(map[string]int)}
		s.carts[id] = c
	}
	c.expiresAt = s.now().Add(s.ttl)
	return c
}

func (s *MemoryCartStore) Get(_ context.Context, cartID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]int{}
	if c := s.cart(cartID, false); c != nil {
		for k, v := range c.lines {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryCartStore) Add(_ context.Context, cartID string, medicineID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(cartID, true)
	c.lines[medicineID] += qty
	if c.lines[medicineID] <= 0 {
		delete(c.lines, medicineID)
		return 0, nil
	}
	return c.lines[medicineID], nil
}

func (s *MemoryCartStore) Set(_ context.Context, cartID string, medicineID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(cartID, true)
	if qty <= 0 {
		delete(c.lines, medicineID)
		return nil
	}
	c.lines[medicineID] = qty
	return nil
}

func (s *MemoryCartStore) Remove(_ context.Context, cartID string, medicineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.cart(cartID, false); c != nil {
		delete(c.lines, medicineID)
	}
	return nil
}

func (s *MemoryCartStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartID)
	return nil
}

// RedisCartStore keeps each cart in a hash of medicine id to quantity.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(cartID string) string {
	return "cart:" + cartID
}

func (s *RedisCartStore) Get(ctx context.Context, cartID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(cartID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for medicineID, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		out[medicineID] = qty
	}
	return out, nil
}

func (s *RedisCartStore) Add(ctx context.Context, cartID string, medicineID string, qty int) (int, error) {
	key := cartKey(cartID)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, medicineID, int64(qty))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	total := int(incr.Val())
	if total <= 0 {
		return 0, s.client.HDel(ctx, key, medicineID).Err()
	}
	return total, nil
}

func (s *RedisCartStore) Set(ctx context.Context, cartID string, medicineID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, cartID, medicineID)
	}
	key := cartKey(cartID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, medicineID, qty)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *RedisCartStore) Remove(ctx context.Context, cartID string, medicineID string) error {
	return s.client.HDel(ctx, cartKey(cartID), medicineID).Err()
}

func (s *RedisCartStore) Clear(ctx context.Context, cartID string) error {
	return s.client.Del(ctx, cartKey(cartID)).Err()
}
