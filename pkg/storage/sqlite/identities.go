package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/nostr"
	"github.com/rexliu/nsign/pkg/signer"
)

// ErrNotFound is returned when no identity matches.
var ErrNotFound = errors.New("identity not found")

// Identity is the public view of a stored key.
type Identity struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	PublicKey string `json:"pubkey"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SaveNsec stores the key encoded in nsec and makes it the active identity.
func (s *Store) SaveNsec(ctx context.Context, nsec, label string) (Identity, error) {
	secret, err := nostr.SecretFromNsec(nsec)
	if err != nil {
		return Identity{}, err
	}
	return s.SaveSecret(ctx, secret, label)
}

// Generate creates a fresh key and makes it the active identity.
func (s *Store) Generate(ctx context.Context, label string) (Identity, error) {
	secret, err := nostr.GenerateSecretKey()
	if err != nil {
		return Identity{}, err
	}
	return s.SaveSecret(ctx, secret, label)
}

// SaveSecret stores secret and makes it the only active identity. Saving a
// key that is already stored reactivates it and updates its label.
func (s *Store) SaveSecret(ctx context.Context, secret []byte, label string) (Identity, error) {
	pub, err := nostr.PublicKeyHex(secret)
	if err != nil {
		return Identity{}, err
	}
	now := time.Now().UnixMilli()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE identities SET active = 0, updated_at = ? WHERE active = 1`, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identities(id, label, secret_hex, pubkey_hex, active, created_at, updated_at)
			VALUES(?,?,?,?,1,?,?)
			ON CONFLICT(pubkey_hex) DO UPDATE SET label = excluded.label, active = 1, updated_at = excluded.updated_at;
		`, core.NewID(), label, hex.EncodeToString(secret), pub, now, now)
		return err
	})
	if err != nil {
		return Identity{}, fmt.Errorf("save identity: %w", err)
	}
	return s.Active(ctx)
}

// Active returns the active identity or ErrNotFound.
func (s *Store) Active(ctx context.Context) (Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, pubkey_hex, active, created_at, updated_at
		FROM identities WHERE active = 1;
	`)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	return ident, err
}

// List returns every stored identity, oldest first.
func (s *Store) List(ctx context.Context) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, pubkey_hex, active, created_at, updated_at
		FROM identities ORDER BY created_at, id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

// Forget removes all stored identities and reports how many were deleted.
func (s *Store) Forget(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportNsec returns the active identity's secret in nsec form.
func (s *Store) ExportNsec(ctx context.Context) (string, error) {
	secret, _, err := s.activeSecret(ctx)
	if err != nil {
		return "", err
	}
	return nostr.EncodeSecretKey(secret)
}

// CurrentIdentity implements signer.IdentityProvider.
func (s *Store) CurrentIdentity(ctx context.Context) (*signer.Identity, error) {
	secret, pub, err := s.activeSecret(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, signer.ErrNoIdentity
	}
	if err != nil {
		return nil, err
	}
	return &signer.Identity{Secret: secret, PublicKey: pub}, nil
}

func (s *Store) activeSecret(ctx context.Context) ([]byte, string, error) {
	var secretHex, pub string
	err := s.db.QueryRowContext(ctx, `SELECT secret_hex, pubkey_hex FROM identities WHERE active = 1`).Scan(&secretHex, &pub)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, "", fmt.Errorf("stored signer is invalid: %w", err)
	}
	return secret, pub, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (Identity, error) {
	var (
		ident  Identity
		active int
	)
	if err := row.Scan(&ident.ID, &ident.Label, &ident.PublicKey, &active, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		return Identity{}, err
	}
	ident.Active = active == 1
	return ident, nil
}
