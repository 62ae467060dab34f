package repositories

import (
	"context"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccessRepo struct {
	pool *pgxpool.Pool
}

func NewAccessRepo(pool *pgxpool.Pool) *AccessRepo {
	return &AccessRepo{pool: pool}
}

func (r *AccessRepo) FindByKey(ctx context.Context, apiKey string) (*models.Access, error) {
	var a models.Access
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, apikey, apisecret_hash, scope, created
		FROM customer_access WHERE apikey = $1
	`, apiKey).Scan(&a.ID, &a.CustomerID, &a.APIKey, &a.APISecretHash, &a.Scope, &a.Created)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
