package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	keys   map[int64]APIKey
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{keys: map[int64]APIKey{}, nextID: 1}
}

func (m *memoryRepo) GetKey(_ context.Context, id int64) (APIKey, error) {
	key, ok := m.keys[id]
	if !ok {
		return APIKey{}, shared.ErrInvalidCredentials
	}
	return key, nil
}

func (m *memoryRepo) InsertKey(_ context.Context, name, secretHash string) (APIKey, error) {
	key := APIKey{ID: m.nextID, Name: name, SecretHash: secretHash, CreatedAt: time.Now()}
	m.keys[key.ID] = key
	m.nextID++
	return key, nil
}

func (m *memoryRepo) RevokeKey(_ context.Context, id int64) error {
	key, ok := m.keys[id]
	if !ok || key.RevokedAt != nil {
		return shared.ErrInvalidCredentials
	}
	now := time.Now()
	key.RevokedAt = &now
	m.keys[id] = key
	return nil
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(newMemoryRepo())

	key, token, err := svc.Issue(context.Background(), "warehouse-app")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "warehouse-app", key.Name)

	verified, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, key.ID, verified.ID)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, token, err := svc.Issue(context.Background(), "warehouse-app")
	require.NoError(t, err)

	for _, bad := range []string{"", "no-separator", "1.", "abc.secret", token + "x", "999.deadbeef"} {
		_, err := svc.Verify(context.Background(), bad)
		require.ErrorIs(t, err, shared.ErrInvalidCredentials, "token %q", bad)
	}
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	svc := NewService(newMemoryRepo())
	key, token, err := svc.Issue(context.Background(), "warehouse-app")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), key.ID))
	_, err = svc.Verify(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestIssueRequiresName(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, _, err := svc.Issue(context.Background(), "  ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMiddleware(t *testing.T) {
	svc := NewService(newMemoryRepo())
	key, token, err := svc.Issue(context.Background(), "warehouse-app")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotActor int64
	handler := Middleware(svc, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("header key accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-API-Key", token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, key.ID, gotActor)
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-API-Key", "1.wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
