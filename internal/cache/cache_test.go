package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

type CacheSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func (s *CacheSuite) request() domain.AccessRequest {
	return domain.AccessRequest{
		User:   id.UserID(uuid.New()),
		Tenant: id.TenantID(uuid.New()),
		Action: "VIEW_REPORT",
	}
}

func (s *CacheSuite) TestInMemoryStore() {
	store := NewInMemoryStore(WithClock(func() time.Time { return s.now }))
	decision := domain.Decision{Allowed: true, Source: domain.SourceRole, Reason: "granted by role"}

	s.Run("miss on empty store", func() {
		_, ok, err := store.Get(s.ctx, "k1")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("set then get", func() {
		s.Require().NoError(store.Set(s.ctx, "k1", decision, time.Minute))
		got, ok, err := store.Get(s.ctx, "k1")
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(decision, got)
	})

	s.Run("entry expires after TTL", func() {
		s.Require().NoError(store.Set(s.ctx, "k2", decision, time.Minute))
		s.now = s.now.Add(time.Minute)

		_, ok, err := store.Get(s.ctx, "k2")
		s.Require().NoError(err)
		s.False(ok)
		s.Equal(1, store.Len(), "expired entry reclaimed lazily, live entry k1 remains")
	})

	s.Run("concurrent access is safe", func() {
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					_ = store.Set(s.ctx, "shared", decision, time.Minute)
					_, _, _ = store.Get(s.ctx, "shared")
				}
			}()
		}
		wg.Wait()
	})
}

func (s *CacheSuite) TestKeyConstruction() {
	versions := NewVersions()
	req := s.request()

	s.Run("era advance changes every key", func() {
		before := Key(ModeHas, versions.Era(), "cafe", versions.Identity(req.User, req.Tenant), req)
		versions.BumpEra()
		after := Key(ModeHas, versions.Era(), "cafe", versions.Identity(req.User, req.Tenant), req)
		s.NotEqual(before, after)
	})

	s.Run("identity bump changes only that pair", func() {
		other := s.request()
		bumpedBefore := Key(ModeHas, versions.Era(), "cafe", versions.Identity(req.User, req.Tenant), req)
		otherBefore := Key(ModeHas, versions.Era(), "cafe", versions.Identity(other.User, other.Tenant), other)

		versions.BumpIdentity(req.User, req.Tenant)

		bumpedAfter := Key(ModeHas, versions.Era(), "cafe", versions.Identity(req.User, req.Tenant), req)
		otherAfter := Key(ModeHas, versions.Era(), "cafe", versions.Identity(other.User, other.Tenant), other)

		s.NotEqual(bumpedBefore, bumpedAfter)
		s.Equal(otherBefore, otherAfter)
	})

	s.Run("catalog hash is a key segment", func() {
		k1 := Key(ModeHas, 0, "cafe", 0, req)
		k2 := Key(ModeHas, 0, "beef", 0, req)
		s.NotEqual(k1, k2)
	})

	s.Run("modes occupy distinct keyspaces", func() {
		s.NotEqual(
			Key(ModeHas, 0, "cafe", 0, req),
			Key(ModeExplain, 0, "cafe", 0, req),
		)
	})

	s.Run("legacy keyspace is distinct from both modes", func() {
		legacy := LegacyKey(0, "cafe", 0, req)
		s.NotEqual(legacy, Key(ModeHas, 0, "cafe", 0, req))
		s.NotEqual(legacy, Key(ModeExplain, 0, "cafe", 0, req))
	})
}

func (s *CacheSuite) TestVersionsDefaultToZero() {
	versions := NewVersions()
	s.Equal(uint64(0), versions.Era())
	s.Equal(uint64(0), versions.Identity(id.UserID(uuid.New()), id.TenantID(uuid.New())))
}

func (s *CacheSuite) TestDecodeDecision() {
	s.Run("valid payload round-trips", func() {
		decision := domain.Decision{Allowed: true, Source: domain.SourceRole, Reason: "granted by role"}
		payload, err := json.Marshal(decision)
		s.Require().NoError(err)

		got, ok := decodeDecision(payload)
		s.True(ok)
		s.Equal(decision, got)
	})

	s.Run("garbage payload is rejected, not surfaced as an error", func() {
		_, ok := decodeDecision([]byte("not-json"))
		s.False(ok)
	})
}
