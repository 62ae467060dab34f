package repositories

import (
	"context"
	"time"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClearingRepo struct {
	pool *pgxpool.Pool
}

func NewClearingRepo(pool *pgxpool.Pool) *ClearingRepo {
	return &ClearingRepo{pool: pool}
}

func (r *ClearingRepo) Insert(ctx context.Context, c *models.Clearing) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO clearing (token_id, debitor_id, creditor_id, debitor_account, creditor_account)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created
	`, c.TokenID, c.DebitorID, c.CreditorID, c.DebitorAccount, c.CreditorAccount).Scan(&c.ID, &c.Created)
}

// ListByCustomer returns the settlement rows a customer participates in, on
// either side, joined with token and device references.
func (r *ClearingRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.ClearingRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.created, t.uuid, t.type, t.refname, td.refname, cd.refname,
		       t.amount, t.symbol, c.debitor_account, c.creditor_account
		FROM clearing c
		JOIN token t ON c.token_id = t.id
		JOIN customer_device td ON t.owner_device_id = td.id
		JOIN customer_device cd ON t.lock_device_id = cd.id
		WHERE c.debitor_id = $1 OR c.creditor_id = $1
		ORDER BY c.created DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ClearingRow
	for rows.Next() {
		var row models.ClearingRow
		if err := rows.Scan(&row.Date, &row.TokenUUID, &row.Type, &row.RefName, &row.TokenDevice, &row.CashDevice,
			&row.Amount, &row.Symbol, &row.DebitorAccount, &row.CreditorAccount); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *ClearingRepo) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clearing WHERE created < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
