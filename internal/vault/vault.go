// Package vault encrypts and decrypts remote-service credentials at rest.
//
// Credentials are sealed with AES-256-GCM under a key derived (HKDF-SHA256)
// from a process-wide master secret. The stored form is nonce:tag:payload,
// hex encoded, so a tampered record fails authentication instead of
// decrypting to garbage.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen   = 32 // AES-256
	nonceLen = 12 // standard GCM nonce
	tagLen   = 16 // GCM auth tag
)

// hkdfInfo binds derived keys to this use so the same master secret can be
// reused for other purposes without key collisions.
const hkdfInfo = "minima/credential-vault/v1"

// ErrNoMasterSecret indicates the vault was constructed without a master
// secret. Surfaced at startup, never per-request.
var ErrNoMasterSecret = errors.New("vault: master secret is not configured")

// ErrIntegrity indicates a ciphertext failed authentication. The vault fails
// closed: no partial plaintext is ever returned.
var ErrIntegrity = errors.New("vault: ciphertext failed integrity check")

// Vault seals and opens credential plaintexts. Stateless and safe for
// concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from the master secret and prepares the AEAD.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, ErrNoMasterSecret
	}

	key := make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts a plaintext credential with a fresh random nonce and returns
// the storable nonce:tag:payload string.
func (v *Vault) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; split it back out so the
	// stored form carries the three parts explicitly.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	payload := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(payload), nil
}

// Open decrypts a stored nonce:tag:payload string. Returns ErrIntegrity for
// any malformed or tampered input.
func (v *Vault) Open(stored string) (string, error) {
	parts := strings.SplitN(stored, ":", 3)
	if len(parts) != 3 {
		return "", ErrIntegrity
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceLen {
		return "", ErrIntegrity
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return "", ErrIntegrity
	}
	payload, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrIntegrity
	}

	plaintext, err := v.aead.Open(nil, nonce, append(payload, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
