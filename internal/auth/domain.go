package auth

import "time"

// APIKey is one issued back-office credential. The secret itself is never
// stored; only its bcrypt hash survives issuance.
type APIKey struct {
	ID         int64
	Name       string
	SecretHash string
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Revoked reports whether the key has been withdrawn.
func (k APIKey) Revoked() bool {
	return k.RevokedAt != nil
}
