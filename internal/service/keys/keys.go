// Package keys manages per-user optimizer credentials: creation, listing,
// revocation, and decrypt-for-use on behalf of the sync orchestrator.
//
// The plaintext key exists in two places only: the create response (exactly
// once) and the memory of a sync call that is about to authenticate against
// the optimizer service. At rest there is only vault ciphertext.
package keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/vault"
)

// Store is the storage surface the service needs.
type Store interface {
	CreateCredential(ctx context.Context, cred model.Credential) (model.Credential, error)
	ListCredentials(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error)
	ActiveCredentials(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error)
	RevokeCredential(ctx context.Context, ownerID, credID uuid.UUID) (model.Credential, error)
	TouchCredentialLastUsed(ctx context.Context, credID uuid.UUID) error
}

// Service implements the credential vault operations.
type Service struct {
	store  Store
	vault  *vault.Vault
	logger *slog.Logger
}

// New creates a credential service.
func New(store Store, v *vault.Vault, logger *slog.Logger) *Service {
	return &Service{store: store, vault: v, logger: logger}
}

// Create generates a fresh high-entropy key, seals it, and stores the
// ciphertext. The returned plaintext is unrecoverable after this call.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name string) (model.CredentialWithPlaintext, error) {
	plaintext, prefix, err := model.GenerateCredentialKey()
	if err != nil {
		return model.CredentialWithPlaintext{}, fmt.Errorf("keys: generate: %w", err)
	}

	ciphertext, err := s.vault.Seal(plaintext)
	if err != nil {
		return model.CredentialWithPlaintext{}, fmt.Errorf("keys: seal: %w", err)
	}

	cred, err := s.store.CreateCredential(ctx, model.Credential{
		OwnerID:    ownerID,
		Name:       name,
		Prefix:     prefix,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return model.CredentialWithPlaintext{}, err
	}

	return model.CredentialWithPlaintext{Credential: cred, Key: plaintext}, nil
}

// List returns the owner's credentials, newest first. Ciphertext never
// serializes; callers see metadata and the display prefix only.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error) {
	creds, err := s.store.ListCredentials(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		creds = []model.Credential{}
	}
	return creds, nil
}

// Revoke flips a credential inactive. One-way.
func (s *Service) Revoke(ctx context.Context, ownerID, credID uuid.UUID) (model.Credential, error) {
	return s.store.RevokeCredential(ctx, ownerID, credID)
}

// DecryptForUse returns the plaintext of the owner's most recently created
// active key. A key that fails integrity is skipped (and logged), falling
// through to the next newest — a tampered row must never block an otherwise
// healthy account. Returns "" (not an error) when no usable key exists;
// callers treat that as "sync unavailable".
func (s *Service) DecryptForUse(ctx context.Context, ownerID uuid.UUID) (string, error) {
	creds, err := s.store.ActiveCredentials(ctx, ownerID)
	if err != nil {
		return "", err
	}

	for _, cred := range creds {
		plaintext, err := s.vault.Open(cred.Ciphertext)
		if err != nil {
			if errors.Is(err, vault.ErrIntegrity) {
				s.logger.Warn("keys: credential failed integrity check, skipping",
					"credential_id", cred.ID, "owner_id", ownerID)
				continue
			}
			return "", fmt.Errorf("keys: open credential %s: %w", cred.ID, err)
		}

		if err := s.store.TouchCredentialLastUsed(ctx, cred.ID); err != nil {
			// Best-effort bookkeeping; the sync matters more.
			s.logger.Warn("keys: touch last_used", "credential_id", cred.ID, "error", err)
		}
		return plaintext, nil
	}

	return "", nil
}
