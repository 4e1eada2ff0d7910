package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrBindingNotFound = errors.New("verification binding not found")
	// ErrBindingChanged means the binding no longer holds the code being confirmed.
	ErrBindingChanged = errors.New("verification binding changed")
)

// Binding links a Discord user to a claimed Roblox account, the code issued
// for it and whether that code was confirmed.
type Binding struct {
	RequesterID       string
	ExternalAccountID string
	ClaimedUsername   string
	IssuedCode        string
	Verified          bool
	VerifiedAt        *time.Time
	UpdatedAt         time.Time
}

// Pending reports whether the binding holds a code that still awaits confirmation.
func (b Binding) Pending() bool {
	return b.IssuedCode != "" && !b.Verified
}

type bindingRow struct {
	RequesterID       string         `db:"requester_id"`
	ExternalAccountID sql.NullString `db:"external_account_id"`
	ClaimedUsername   string         `db:"claimed_username"`
	IssuedCode        sql.NullString `db:"issued_code"`
	Verified          bool           `db:"verified"`
	VerifiedAt        sql.NullInt64  `db:"verified_at"`
	UpdatedAt         int64          `db:"updated_at"`
}

func (r bindingRow) binding() Binding {
	b := Binding{
		RequesterID:       r.RequesterID,
		ExternalAccountID: r.ExternalAccountID.String,
		ClaimedUsername:   r.ClaimedUsername,
		IssuedCode:        r.IssuedCode.String,
		Verified:          r.Verified,
		UpdatedAt:         time.Unix(r.UpdatedAt, 0),
	}
	if r.VerifiedAt.Valid {
		value := time.Unix(r.VerifiedAt.Int64, 0)
		b.VerifiedAt = &value
	}
	return b
}

const selectBinding = `
	SELECT requester_id, external_account_id, claimed_username, issued_code, verified, verified_at, updated_at
	FROM verification_bindings
	WHERE requester_id = ?`

// UpsertBinding creates the requester's binding or overwrites it with a new
// claim. Any previous confirmation is cleared.
func (s *Store) UpsertBinding(ctx context.Context, requesterID, accountID, username, code string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO verification_bindings (
			requester_id, external_account_id, claimed_username, issued_code, verified, verified_at, updated_at
		) VALUES (?, ?, ?, ?, FALSE, NULL, ?)
		ON CONFLICT(requester_id) DO UPDATE SET
			external_account_id = excluded.external_account_id,
			claimed_username = excluded.claimed_username,
			issued_code = excluded.issued_code,
			verified = FALSE,
			verified_at = NULL,
			updated_at = excluded.updated_at
	`), requesterID, nullString(accountID), username, nullString(code), time.Now().Unix())
	return err
}

func (s *Store) GetBinding(ctx context.Context, requesterID string) (Binding, error) {
	var row bindingRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectBinding), requesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Binding{}, ErrBindingNotFound
		}
		return Binding{}, err
	}
	return row.binding(), nil
}

// MarkVerified flips the binding to verified and stamps when, provided its
// issued code is still code. A binding already verified for code keeps its
// first timestamp. ErrBindingChanged means the code was replaced meanwhile.
func (s *Store) MarkVerified(ctx context.Context, requesterID, code string, when time.Time) (Binding, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Binding{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row bindingRow
	if err = tx.GetContext(ctx, &row, tx.Rebind(selectBinding), requesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrBindingNotFound
		}
		return Binding{}, err
	}
	if code == "" || row.IssuedCode.String != code {
		err = ErrBindingChanged
		return Binding{}, err
	}

	if !row.Verified {
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE verification_bindings
			SET verified = TRUE, verified_at = ?, updated_at = ?
			WHERE requester_id = ? AND issued_code = ? AND verified = FALSE
		`), when.Unix(), when.Unix(), requesterID, code)
		if err != nil {
			return Binding{}, err
		}
		if err = tx.GetContext(ctx, &row, tx.Rebind(selectBinding+` AND issued_code = ?`), requesterID, code); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = ErrBindingChanged
			}
			return Binding{}, err
		}
		if !row.Verified {
			err = ErrBindingChanged
			return Binding{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Binding{}, err
	}
	return row.binding(), nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
