package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credential is a per-user key for the remote optimizer service, held
// encrypted at rest. The plaintext is returned exactly once at creation;
// afterwards only the display prefix is visible. Credentials are revoked,
// never deleted.
type Credential struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Ciphertext string     `json:"-"` // nonce:tag:payload, hex. Never serialized.
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// CredentialWithPlaintext is returned only on creation — the single time
// the plaintext key is available.
type CredentialWithPlaintext struct {
	Credential
	Key string `json:"key"`
}

// CreateCredentialRequest is the request body for POST /v1/keys.
type CreateCredentialRequest struct {
	Name string `json:"name"`
}

// CredentialListResponse is the list response for GET /v1/keys.
type CredentialListResponse struct {
	Keys  []Credential `json:"keys"`
	Total int          `json:"total"`
}

const (
	// credentialSecretLen is the number of random bytes in a generated key.
	credentialSecretLen = 24
	// credentialPrefixChars is how much of the plaintext is kept for display.
	credentialPrefixChars = 8
	// credentialFormatPrefix is the static prefix for all Minima optimizer keys.
	credentialFormatPrefix = "mn_"
)

// GenerateCredentialKey produces a new high-entropy plaintext key in the
// format mn_<48-hex-chars> plus the display prefix stored alongside the
// ciphertext.
func GenerateCredentialKey() (plaintext, prefix string, err error) {
	secret := make([]byte, credentialSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("model: generate credential secret: %w", err)
	}
	plaintext = credentialFormatPrefix + hex.EncodeToString(secret)
	return plaintext, plaintext[:len(credentialFormatPrefix)+credentialPrefixChars], nil
}

// ValidateCredentialName checks that a display name is reasonable.
func ValidateCredentialName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("name must be at most 255 characters")
	}
	return nil
}
