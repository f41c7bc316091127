package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// MemoryRefreshTokenStore is a mutex-guarded in-process RefreshTokenStore.
// It backs tests and single-node development; production deployments use the
// Bun or Redis stores.
type MemoryRefreshTokenStore struct {
	mu      sync.Mutex
	records map[string]*RefreshToken
}

var _ RefreshTokenStore = (*MemoryRefreshTokenStore)(nil)

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		records: make(map[string]*RefreshToken),
	}
}

func (s *MemoryRefreshTokenStore) Insert(ctx context.Context, record *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Token]; exists {
		return goerrors.New("refresh token value collision", goerrors.CategoryConflict)
	}

	clone := *record
	s.records[record.Token] = &clone
	return nil
}

func (s *MemoryRefreshTokenStore) Find(ctx context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[token]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryRefreshTokenStore) Rotate(ctx context.Context, token string, replacement *RefreshToken, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[token]
	if !ok || record.Status != RefreshStatusActive {
		return false, nil
	}

	record.Status = RefreshStatusRotated
	replacedBy := replacement.ID
	record.ReplacedBy = &replacedBy
	record.UpdatedAt = &at

	clone := *replacement
	s.records[replacement.Token] = &clone
	return true, nil
}

func (s *MemoryRefreshTokenStore) RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, record := range s.records {
		if record.IdentityID != identityID || record.Status == RefreshStatusRevoked {
			continue
		}
		record.Status = RefreshStatusRevoked
		revokedAt := at
		record.RevokedAt = &revokedAt
		record.UpdatedAt = &revokedAt
		affected++
	}
	return affected, nil
}

func (s *MemoryRefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for token, record := range s.records {
		if record.ExpiresAt.Before(before) {
			delete(s.records, token)
			deleted++
		}
	}
	return deleted, nil
}
