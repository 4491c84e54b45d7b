package rules

import (
	"context"
	"sync"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

// InMemoryStore keeps rules in a locked map. It intentionally favors
// clarity over performance; production deployments use PostgresStore.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[id.UserID][]domain.PersonalizedRule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rules: make(map[id.UserID][]domain.PersonalizedRule)}
}

// Put adds or replaces a rule. This is a seeding hook for tests and
// development; the engine itself never writes rules.
func (s *InMemoryStore) Put(rule domain.PersonalizedRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.rules[rule.UserID]
	for i, r := range existing {
		if r.ID == rule.ID {
			existing[i] = rule
			return
		}
	}
	s.rules[rule.UserID] = append(existing, rule)
}

// Remove deletes a rule by ID if present.
func (s *InMemoryStore) Remove(userID id.UserID, ruleID id.RuleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.rules[userID]
	for i, r := range existing {
		if r.ID == ruleID {
			s.rules[userID] = append(existing[:i], existing[i+1:]...)
			return
		}
	}
}

func (s *InMemoryStore) ListForUserAction(_ context.Context, userID id.UserID, action string) ([]domain.PersonalizedRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PersonalizedRule
	for _, r := range s.rules[userID] {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out, nil
}
