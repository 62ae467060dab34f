package repositories

import (
	"context"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepo struct {
	pool *pgxpool.Pool
}

func NewCustomerRepo(pool *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

func (r *CustomerRepo) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c models.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created FROM customer WHERE email = $1
	`, email).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.Created)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
