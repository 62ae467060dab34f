package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParamRepo stores per-customer JSON parameters (clearing accounts, demo
// flags). Values are opaque to the core.
type ParamRepo struct {
	pool *pgxpool.Pool
}

func NewParamRepo(pool *pgxpool.Pool) *ParamRepo {
	return &ParamRepo{pool: pool}
}

// Read returns the raw JSON value, or nil when the parameter is unset.
func (r *ParamRepo) Read(ctx context.Context, customerID int64, key string) (json.RawMessage, error) {
	var value json.RawMessage
	err := r.pool.QueryRow(ctx, `
		SELECT pvalue FROM customer_param WHERE customer_id = $1 AND pkey = $2
	`, customerID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ReadBool interprets a parameter as a JSON boolean, defaulting to false.
func (r *ParamRepo) ReadBool(ctx context.Context, customerID int64, key string) (bool, error) {
	raw, err := r.Read(ctx, customerID, key)
	if err != nil || raw == nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, nil
	}
	return v, nil
}

func (r *ParamRepo) Write(ctx context.Context, customerID int64, key string, value json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customer_param (customer_id, pkey, pvalue) VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, pkey) DO UPDATE SET pvalue = EXCLUDED.pvalue, updated = now()
	`, customerID, key, value)
	return err
}
