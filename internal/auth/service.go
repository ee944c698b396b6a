package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service issues and verifies API keys. Presented tokens carry the key id in
// front of the secret ("<id>.<secret>") so verification costs a single bcrypt
// comparison instead of a scan over every issued key.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Issue creates a key and returns the record together with the one-time
// plaintext token. The plaintext is not recoverable afterwards.
func (s *Service) Issue(ctx context.Context, name string) (APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return APIKey{}, "", fmt.Errorf("%w: key name required", shared.ErrValidation)
	}
	secret, err := generateSecret()
	if err != nil {
		return APIKey{}, "", fmt.Errorf("generate secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return APIKey{}, "", fmt.Errorf("hash secret: %w", err)
	}
	key, err := s.repo.InsertKey(ctx, name, string(hash))
	if err != nil {
		return APIKey{}, "", err
	}
	return key, fmt.Sprintf("%d.%s", key.ID, secret), nil
}

// Verify checks a presented token and returns the matching key.
func (s *Service) Verify(ctx context.Context, token string) (APIKey, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return APIKey{}, shared.ErrInvalidCredentials
	}
	key, err := s.repo.GetKey(ctx, id)
	if err != nil {
		return APIKey{}, err
	}
	if key.Revoked() {
		return APIKey{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return APIKey{}, shared.ErrInvalidCredentials
	}
	return key, nil
}

// Revoke withdraws a key so future tokens stop verifying.
func (s *Service) Revoke(ctx context.Context, id int64) error {
	return s.repo.RevokeKey(ctx, id)
}

// generateSecret combines two random UUIDs so the secret carries more
// entropy than a single identifier.
func generateSecret() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(append(a[:], b[:]...)), nil
}

func splitToken(token string) (int64, string, bool) {
	idPart, secret, found := strings.Cut(token, ".")
	if !found || secret == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, secret, true
}
