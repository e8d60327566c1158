package resolver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
)

// memCache is a map-backed out.Cache for tests. TTLs are ignored.
type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

type fakePriceStore struct {
	mu      sync.Mutex
	upserts int
	byDom   map[string]*domain.ResolvedPrice
}

func newFakePriceStore() *fakePriceStore {
	return &fakePriceStore{byDom: make(map[string]*domain.ResolvedPrice)}
}

func (s *fakePriceStore) Upsert(ctx context.Context, rp *domain.ResolvedPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	cp := *rp
	s.byDom[rp.Domain] = &cp
	return nil
}

func (s *fakePriceStore) GetByDomain(ctx context.Context, dom string) (*domain.ResolvedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byDom[dom], nil
}

func (s *fakePriceStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// TestResolvePriceServesFromCache: a fresh cached resolution answers an
// ad-hoc request without touching the mailbox archive or the oracle.
func TestResolvePriceServesFromCache(t *testing.T) {
	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: nil},
		emails: map[string]*domain.CandidateEmail{},
	}
	oracle := &scriptedOracle{byNeedle: map[string]*out.AIExtraction{}}
	store := newFakePriceStore()
	cache := newMemCache()

	cached := &domain.ResolvedPrice{
		Domain:         "foo.com",
		GuestPostPrice: fptr(300),
		Currency:       "USD",
		Confidence:     0.9,
		ResolvedAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := cache.SetJSON(context.Background(), "resolved_price:foo.com", cached, time.Minute); err != nil {
		t.Fatal(err)
	}

	svc := NewService(newResolver(provider, oracle, Config{}), store, cache)

	got, err := svc.ResolvePrice(context.Background(), "Foo.com")
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if got == nil || got.GuestPostPrice == nil || *got.GuestPostPrice != 300 {
		t.Fatalf("got %+v, want cached $300 price", got)
	}
	if n := oracle.callCount(); n != 0 {
		t.Errorf("oracle called %d times, want 0", n)
	}
	if n := store.upsertCount(); n != 0 {
		t.Errorf("store upserted %d times, want 0", n)
	}
}

// TestResolvePricePopulatesCache: a cache miss runs the pipeline, stores the
// winner, and warms the cache so the next request never mines again.
func TestResolvePricePopulatesCache(t *testing.T) {
	webmaster := email("w1", "contact@foo.com", "Re: Guest post on foo.com",
		"Okay, $300 final. Agreed.",
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: {"w1"}},
		emails: map[string]*domain.CandidateEmail{"w1": webmaster},
	}
	oracle := &scriptedOracle{byNeedle: map[string]*out.AIExtraction{
		"$300": {Found: true, GuestPostPrice: fptr(300), Currency: "USD", Confidence: 0.9},
	}}
	store := newFakePriceStore()
	cache := newMemCache()

	svc := NewService(newResolver(provider, oracle, Config{}), store, cache)

	first, err := svc.ResolvePrice(context.Background(), "foo.com")
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if first == nil || first.GuestPostPrice == nil || *first.GuestPostPrice != 300 {
		t.Fatalf("got %+v, want $300 resolution", first)
	}
	if n := store.upsertCount(); n != 1 {
		t.Fatalf("store upserted %d times, want 1", n)
	}
	callsAfterFirst := oracle.callCount()

	second, err := svc.ResolvePrice(context.Background(), "foo.com")
	if err != nil {
		t.Fatalf("second ResolvePrice: %v", err)
	}
	if second == nil || second.GuestPostPrice == nil || *second.GuestPostPrice != 300 {
		t.Fatalf("got %+v, want cached $300 resolution", second)
	}
	if n := oracle.callCount(); n != callsAfterFirst {
		t.Errorf("second call reached the oracle (%d -> %d calls)", callsAfterFirst, n)
	}
	if n := store.upsertCount(); n != 1 {
		t.Errorf("store upserted %d times after cached call, want 1", n)
	}
}
