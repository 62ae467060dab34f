package repositories

import (
	"context"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const deviceColumns = `id, customer_id, uuid, pubkey, type, refname, info, created`

type DeviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.CustomerID, &d.UUID, &d.PubKey, &d.Type, &d.RefName, &d.Info, &d.Created)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepo) Insert(ctx context.Context, d *models.Device) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO customer_device (customer_id, uuid, pubkey, type, refname, info)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created
	`, d.CustomerID, d.UUID, d.PubKey, d.Type, d.RefName, d.Info).Scan(&d.ID, &d.Created)
}

func (r *DeviceRepo) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	return scanDevice(r.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM customer_device WHERE id = $1`, id))
}

func (r *DeviceRepo) FindByCustomerAndUUID(ctx context.Context, customerID int64, uid uuid.UUID) (*models.Device, error) {
	return scanDevice(r.pool.QueryRow(ctx, `
		SELECT `+deviceColumns+` FROM customer_device WHERE customer_id = $1 AND uuid = $2
	`, customerID, uid))
}

func (r *DeviceRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.Device, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+deviceColumns+` FROM customer_device WHERE customer_id = $1 ORDER BY created DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (r *DeviceRepo) DeleteByCustomerAndUUID(ctx context.Context, customerID int64, uid uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customer_device WHERE customer_id = $1 AND uuid = $2`, customerID, uid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
