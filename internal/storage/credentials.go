package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/model"
)

// CreateCredential inserts a new encrypted credential row.
// The caller has already sealed the plaintext; only ciphertext arrives here.
func (db *DB) CreateCredential(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	cred.Active = true

	_, err := db.pool.Exec(ctx,
		`INSERT INTO credentials (id, owner_id, name, prefix, ciphertext, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cred.ID, cred.OwnerID, cred.Name, cred.Prefix, cred.Ciphertext, cred.Active, cred.CreatedAt,
	)
	if err != nil {
		return model.Credential{}, fmt.Errorf("storage: create credential: %w", err)
	}
	return cred, nil
}

// ListCredentials returns all of an owner's credentials, newest first.
// Metadata only from the caller's perspective — handlers never serialize
// the ciphertext field.
func (db *DB) ListCredentials(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, name, prefix, ciphertext, active, created_at, last_used_at
		 FROM credentials
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Name, &c.Prefix, &c.Ciphertext,
			&c.Active, &c.CreatedAt, &c.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// ActiveCredentials returns an owner's active credentials, newest first.
// Decrypt-for-use walks this list and takes the first one that opens.
func (db *DB) ActiveCredentials(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, name, prefix, ciphertext, active, created_at, last_used_at
		 FROM credentials
		 WHERE owner_id = $1 AND active
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: active credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Name, &c.Prefix, &c.Ciphertext,
			&c.Active, &c.CreatedAt, &c.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// RevokeCredential flips the active flag off. Revocation is one-way and
// idempotent: revoking a key the owner holds that is already inactive is a
// no-op success. Returns ErrNotFound only when the key does not belong to
// the owner. Rows are never deleted.
func (db *DB) RevokeCredential(ctx context.Context, ownerID, credID uuid.UUID) (model.Credential, error) {
	var c model.Credential
	err := db.pool.QueryRow(ctx,
		`UPDATE credentials SET active = FALSE
		 WHERE id = $1 AND owner_id = $2
		 RETURNING id, owner_id, name, prefix, ciphertext, active, created_at, last_used_at`,
		credID, ownerID,
	).Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Prefix, &c.Ciphertext,
		&c.Active, &c.CreatedAt, &c.LastUsedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.Credential{}, fmt.Errorf("storage: credential %s: %w", credID, ErrNotFound)
		}
		return model.Credential{}, fmt.Errorf("storage: revoke credential: %w", err)
	}
	return c, nil
}

// TouchCredentialLastUsed updates last_used_at after a successful
// decrypt-for-use. Callers treat this as fire-and-forget.
func (db *DB) TouchCredentialLastUsed(ctx context.Context, credID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE credentials SET last_used_at = now() WHERE id = $1`,
		credID,
	)
	if err != nil {
		return fmt.Errorf("storage: touch credential last_used: %w", err)
	}
	return nil
}
