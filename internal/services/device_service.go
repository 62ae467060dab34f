package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cashtoken-io/backend/internal/codec"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RegisterDeviceRequest struct {
	PubKey  string
	Type    string
	RefName *string
	Info    json.RawMessage
}

// DeviceService manages customer devices: token devices carry the RSA public
// key that secures codes, cash devices claim locks.
type DeviceService struct {
	devices *repositories.DeviceRepo
	log     *zap.Logger
}

func NewDeviceService(devices *repositories.DeviceRepo, log *zap.Logger) *DeviceService {
	return &DeviceService{devices: devices, log: log}
}

func (s *DeviceService) Register(ctx context.Context, customerID int64, req RegisterDeviceRequest) (*models.Device, error) {
	if req.Type == "" {
		req.Type = models.DeviceTypeATM
	}
	if req.PubKey != "" {
		if _, err := codec.ParsePublicKey(req.PubKey); err != nil {
			return nil, err
		}
	} else if req.Type == models.DeviceTypeToken {
		return nil, fmt.Errorf("%w: token devices require a public key", ErrValidation)
	}

	for attempt := 1; attempt <= createAttempts; attempt++ {
		device := &models.Device{
			CustomerID: customerID,
			UUID:       uuid.New(),
			PubKey:     req.PubKey,
			Type:       req.Type,
			RefName:    req.RefName,
			Info:       req.Info,
		}
		err := s.devices.Insert(ctx, device)
		if repositories.IsUniqueViolation(err) {
			s.log.Warn("device uuid collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		return device, nil
	}
	return nil, ErrCreateExhausted
}

func (s *DeviceService) List(ctx context.Context, customerID int64) ([]models.Device, error) {
	return s.devices.ListByCustomer(ctx, customerID)
}

func (s *DeviceService) Delete(ctx context.Context, customerID int64, deviceUUID uuid.UUID) error {
	deleted, err := s.devices.DeleteByCustomerAndUUID(ctx, customerID, deviceUUID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: device %s", ErrNotFound, deviceUUID)
	}
	return nil
}
