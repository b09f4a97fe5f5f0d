package auth

import (
	"context"
	"sync"
	"time"
)

// MockJWTService resolves bearer tokens from an in-memory table instead of
// verifying signatures. Tokens it has not issued resolve to DefaultUser,
// or fail with ErrInvalidToken when DefaultUser is empty.
type MockJWTService struct {
	DefaultUser string

	// ValidationError fails every validation when set.
	ValidationError error

	// ValidateTokenFunc replaces the table lookup entirely.
	ValidateTokenFunc func(ctx context.Context, tokenString string) (*Claims, error)

	mu     sync.Mutex
	issued map[string]string
}

// NewMockJWTService returns a mock that treats any token as username.
func NewMockJWTService(username string) *MockJWTService {
	return &MockJWTService{DefaultUser: username}
}

// GenerateToken issues "mock-<username>" and remembers its owner.
func (m *MockJWTService) GenerateToken(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued == nil {
		m.issued = make(map[string]string)
	}
	token := "mock-" + username
	m.issued[token] = username
	return token, nil
}

func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, tokenString)
	}
	if m.ValidationError != nil {
		return nil, m.ValidationError
	}

	m.mu.Lock()
	username, ok := m.issued[tokenString]
	m.mu.Unlock()
	if !ok {
		username = m.DefaultUser
	}
	if username == "" {
		return nil, ErrInvalidToken
	}

	now := time.Now()
	return &Claims{
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		ID:        tokenString,
	}, nil
}

var _ JWTService = (*MockJWTService)(nil)
