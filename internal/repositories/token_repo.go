package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenColumns = `id, uuid, owner_id, owner_device_id, lock_device_id, type, state,
	       amount, symbol, secure_code, plain_code, clearstate, refname, lockrefname,
	       info, processing_info, expires, created, updated`

type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, the signal for a code collision during creation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func qualify(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanToken(row pgx.Row) (*models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.UUID, &t.OwnerID, &t.OwnerDeviceID, &t.LockDeviceID, &t.Type, &t.State,
		&t.Amount, &t.Symbol, &t.SecureCode, &t.PlainCode, &t.ClearState, &t.RefName, &t.LockRefName,
		&t.Info, &t.ProcessingInfo, &t.Expires, &t.Created, &t.Updated)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepo) Insert(ctx context.Context, t *models.Token) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO token (uuid, owner_id, owner_device_id, type, state, amount, symbol,
		                   secure_code, plain_code, clearstate, refname, info, expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created, updated
	`, t.UUID, t.OwnerID, t.OwnerDeviceID, t.Type, t.State, t.Amount, t.Symbol,
		t.SecureCode, t.PlainCode, t.ClearState, t.RefName, t.Info, t.Expires,
	).Scan(&t.ID, &t.Created, &t.Updated)
}

func (r *TokenRepo) FindByUUID(ctx context.Context, uid uuid.UUID) (*models.Token, error) {
	return scanToken(r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM token WHERE uuid = $1`, uid))
}

func (r *TokenRepo) FindByPlainCode(ctx context.Context, plainCode string) (*models.Token, error) {
	// plain codes are cleared outside OPEN, so at most one live row matches
	return scanToken(r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM token WHERE plain_code = $1 AND state = 'OPEN'
	`, plainCode))
}

// Lock attempts the atomic OPEN -> LOCKED transition. The row count of the
// conditional update is the only concurrency-safety primitive in the system:
// zero rows means another claimant won or the state already advanced. An
// overdue token cannot be claimed even before the sweep marked it EXPIRED.
// The secret fields stay intact so a later partial cashout can reuse the code.
func (r *TokenRepo) Lock(ctx context.Context, id, lockDeviceID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE token SET state = 'LOCKED', lock_device_id = $1, updated = now()
		WHERE id = $2 AND state = 'OPEN' AND (expires IS NULL OR expires > now())
	`, lockDeviceID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Reject consumes an OPEN token after a failed verification. One-shot: the
// secrets are cleared so the physical code can never be retried.
func (r *TokenRepo) Reject(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE token SET state = 'REJECTED', secure_code = NULL, plain_code = NULL, updated = now()
		WHERE id = $1 AND state = 'OPEN'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Confirm moves a LOCKED token to its final state and, when spawn is set,
// inserts the partial-cashout remainder in the same transaction.
func (r *TokenRepo) Confirm(ctx context.Context, id int64, state string, amount int64,
	lockRefName *string, processingInfo json.RawMessage, spawn *models.Token) (bool, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE token SET state = $1, amount = $2,
		       lockrefname = COALESCE($3, lockrefname),
		       processing_info = COALESCE($4, processing_info),
		       secure_code = NULL, plain_code = NULL, updated = now()
		WHERE id = $5 AND state = 'LOCKED'
	`, state, amount, lockRefName, processingInfo, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if spawn != nil {
		err = tx.QueryRow(ctx, `
			INSERT INTO token (uuid, owner_id, owner_device_id, type, state, amount, symbol,
			                   secure_code, plain_code, clearstate, refname, info, expires)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created, updated
		`, spawn.UUID, spawn.OwnerID, spawn.OwnerDeviceID, spawn.Type, spawn.State, spawn.Amount, spawn.Symbol,
			spawn.SecureCode, spawn.PlainCode, spawn.ClearState, spawn.RefName, spawn.Info, spawn.Expires,
		).Scan(&spawn.ID, &spawn.Created, &spawn.Updated)
		if err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkDeleted is the owner-initiated cancel of a still-OPEN token, addressed
// through the owning device.
func (r *TokenRepo) MarkDeleted(ctx context.Context, ownerID int64, deviceUUID, tokenUUID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE token SET state = 'DELETED', secure_code = NULL, plain_code = NULL, updated = now()
		WHERE uuid = $1 AND owner_id = $2 AND state = 'OPEN'
		  AND owner_device_id = (SELECT id FROM customer_device WHERE uuid = $3 AND customer_id = $2)
	`, tokenUUID, ownerID, deviceUUID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireOverdue sweeps OPEN tokens past their expiry and returns them so the
// caller can emit change events.
func (r *TokenRepo) ExpireOverdue(ctx context.Context) ([]models.Token, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE token SET state = 'EXPIRED', secure_code = NULL, plain_code = NULL, updated = now()
		WHERE state = 'OPEN' AND expires IS NOT NULL AND expires < now()
		RETURNING `+tokenColumns+`
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swept []models.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		swept = append(swept, *t)
	}
	return swept, rows.Err()
}

// UpdateFields patches the non-lifecycle allow-list (clearstate, info) of an
// owner's token, independent of the state machine.
func (r *TokenRepo) UpdateFields(ctx context.Context, ownerID int64, tokenUUID uuid.UUID,
	clearState *int, info json.RawMessage) (*models.Token, error) {

	return scanToken(r.pool.QueryRow(ctx, `
		UPDATE token SET clearstate = COALESCE($1, clearstate),
		       info = COALESCE($2, info), updated = now()
		WHERE uuid = $3 AND owner_id = $4
		RETURNING `+tokenColumns+`
	`, clearState, info, tokenUUID, ownerID))
}

type TokenFilter struct {
	DeviceUUID *uuid.UUID
	State      *string
	ClearState *int
	Limit      int
	Offset     int
}

func (r *TokenRepo) ListByOwner(ctx context.Context, ownerID int64, f TokenFilter) ([]models.Token, error) {
	query := `SELECT ` + qualify(tokenColumns, "t") + ` FROM token t`
	args := []any{ownerID}
	argIdx := 2
	where := []string{"t.owner_id = $1"}

	if f.DeviceUUID != nil {
		query += ` JOIN customer_device d ON d.id = t.owner_device_id`
		where = append(where, fmt.Sprintf("d.uuid = $%d", argIdx))
		args = append(args, *f.DeviceUUID)
		argIdx++
	}
	if f.State != nil {
		where = append(where, fmt.Sprintf("t.state = $%d", argIdx))
		args = append(args, *f.State)
		argIdx++
	}
	if f.ClearState != nil {
		where = append(where, fmt.Sprintf("t.clearstate = $%d", argIdx))
		args = append(args, *f.ClearState)
		argIdx++
	}

	query += " WHERE "
	for i, w := range where {
		if i > 0 {
			query += " AND "
		}
		query += w
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY t.created DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// CleanupBefore drops historical rows older than the retention cutoff.
func (r *TokenRepo) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM token WHERE created < $1 AND state <> 'OPEN' AND state <> 'LOCKED'`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
