package aicache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"wayfarer/internal/itinerary"
)

// DefaultTTL is used for a tier whose TTL is not configured.
const DefaultTTL = 15 * time.Minute

// Hit reports which tier served a lookup.
type Hit struct {
	Local bool
	Redis bool
}

// Any reports whether either tier served the lookup.
func (h Hit) Any() bool {
	return h.Local || h.Redis
}

// Service consults the local tier, then the shared tier. Every cache failure is
// logged and treated as a miss or a no-op; nothing here fails a request.
type Service struct {
	local     Tier
	shared    Tier
	localTTL  time.Duration
	sharedTTL time.Duration
}

// NewService wires the tiers. Either tier may be nil to disable it.
func NewService(local, shared Tier, localTTL, sharedTTL time.Duration) *Service {
	if localTTL <= 0 {
		localTTL = DefaultTTL
	}
	if sharedTTL <= 0 {
		sharedTTL = DefaultTTL
	}
	return &Service{local: local, shared: shared, localTTL: localTTL, sharedTTL: sharedTTL}
}

// Lookup returns the cached itinerary for key, if any. A shared-tier hit is
// copied into the local tier.
func (s *Service) Lookup(ctx context.Context, key string) (*itinerary.GeneratedItinerary, Hit) {
	if s == nil {
		return nil, Hit{}
	}
	if g := s.read(ctx, s.local, key); g != nil {
		recordLookup("local", true)
		return g, Hit{Local: true}
	}
	if s.local != nil {
		recordLookup("local", false)
	}
	if s.shared == nil {
		return nil, Hit{}
	}

	raw, ok := s.get(ctx, s.shared, key)
	if !ok {
		recordLookup("redis", false)
		return nil, Hit{}
	}
	g, err := decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("tier", "redis").Msg("cache entry undecodable; treating as miss")
		recordLookup("redis", false)
		return nil, Hit{}
	}
	recordLookup("redis", true)
	s.set(ctx, s.local, key, raw, s.localTTL)
	return g, Hit{Redis: true}
}

// Store writes g to both tiers under key with their own TTLs.
func (s *Service) Store(ctx context.Context, key string, g *itinerary.GeneratedItinerary) {
	if s == nil || g == nil {
		return
	}
	raw, err := json.Marshal(g)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache serialization failed; skipping write")
		return
	}
	s.set(ctx, s.local, key, raw, s.localTTL)
	s.set(ctx, s.shared, key, raw, s.sharedTTL)
}

func (s *Service) read(ctx context.Context, t Tier, key string) *itinerary.GeneratedItinerary {
	raw, ok := s.get(ctx, t, key)
	if !ok {
		return nil
	}
	g, err := decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("tier", t.Name()).Msg("cache entry undecodable; treating as miss")
		return nil
	}
	return g
}

func (s *Service) get(ctx context.Context, t Tier, key string) ([]byte, bool) {
	if t == nil {
		return nil, false
	}
	raw, ok, err := t.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("tier", t.Name()).Msg("cache get failed; treating as miss")
		return nil, false
	}
	return raw, ok
}

func (s *Service) set(ctx context.Context, t Tier, key string, raw []byte, ttl time.Duration) {
	if t == nil {
		return
	}
	if err := t.Set(ctx, key, raw, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Str("tier", t.Name()).Msg("cache set failed")
	}
}

func decode(raw []byte) (*itinerary.GeneratedItinerary, error) {
	var g itinerary.GeneratedItinerary
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
