package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/evidgo/evidgo/model"
)

// ClaimStore is an in-memory model.ClaimStore for tests.
type ClaimStore struct {
	mu     sync.RWMutex
	claims map[model.ClaimID]model.Claim
	err    error
}

// NewClaimStore creates a ClaimStore holding the given claims.
func NewClaimStore(claims ...model.Claim) *ClaimStore {
	s := &ClaimStore{claims: make(map[model.ClaimID]model.Claim, len(claims))}
	for _, c := range claims {
		s.claims[c.ID] = c
	}
	return s
}

// Add inserts or replaces a claim.
func (s *ClaimStore) Add(c model.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = c
}

// FailWith makes every subsequent lookup return err.
func (s *ClaimStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// GetClaim implements model.ClaimStore.
func (s *ClaimStore) GetClaim(_ context.Context, id model.ClaimID) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetAllClaims implements model.ClaimStore. Claims are returned in ID order
// so tests are deterministic.
func (s *ClaimStore) GetAllClaims(_ context.Context) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	out := make([]model.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SourceMapper is an in-memory model.SourceMapper for tests.
type SourceMapper struct {
	mu       sync.RWMutex
	mappings map[string]model.SourceMapping
}

// NewSourceMapper creates a SourceMapper holding the given mappings, keyed
// by their AuthorYear.
func NewSourceMapper(mappings ...model.SourceMapping) *SourceMapper {
	m := &SourceMapper{mappings: make(map[string]model.SourceMapping, len(mappings))}
	for _, sm := range mappings {
		m.mappings[sm.AuthorYear] = sm
	}
	return m
}

// GetSourceMapping implements model.SourceMapper.
func (m *SourceMapper) GetSourceMapping(_ context.Context, authorYear string) (*model.SourceMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.mappings[authorYear]
	if !ok {
		return nil, nil
	}
	return &sm, nil
}
