package services

import (
	"context"
	"testing"
	"time"

	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLocker struct {
	err    error
	signed *SignedData
}

func (f *fakeLocker) VerifyAndLockByDeviceID(ctx context.Context, cashDeviceID int64, radiocode string, signed *SignedData) (*models.Token, error) {
	f.signed = signed
	if f.err != nil {
		return nil, f.err
	}
	return &models.Token{
		UUID:         uuid.New(),
		State:        models.TokenStateLocked,
		LockDeviceID: &cashDeviceID,
	}, nil
}

type fakeDevices struct {
	device *models.Device
}

func (f *fakeDevices) FindByCustomerAndUUID(ctx context.Context, customerID int64, uid uuid.UUID) (*models.Device, error) {
	return f.device, nil
}

type fakeParams struct {
	fixed bool
}

func (f *fakeParams) ReadBool(ctx context.Context, customerID int64, key string) (bool, error) {
	return f.fixed, nil
}

func newTestTrigger(t *testing.T, locker TokenLocker, cfg *config.Config) (*TriggerService, *time.Time) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{TriggerTTLSeconds: 60}
	}
	device := &models.Device{ID: 7, CustomerID: 1, UUID: uuid.New(), Type: models.DeviceTypeATM}
	svc := NewTriggerService(locker, &fakeDevices{device: device}, &fakeParams{}, nil, nil, nil, cfg, zap.NewNop())

	now := time.Now()
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestTriggerHappyPath(t *testing.T) {
	svc, _ := newTestTrigger(t, &fakeLocker{}, nil)
	ctx := context.Background()

	code, err := svc.Create(ctx, 1, uuid.New(), 60)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	var got *models.Token
	expires, err := svc.Register(ctx, code, func(tok *models.Token) { got = tok })
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now().Add(-time.Second)))

	require.NoError(t, svc.Notify(ctx, code, "radiocode", ""))

	require.NotNil(t, got, "registered waiter must receive the token")
	assert.Equal(t, models.TokenStateLocked, got.State)
	require.NotNil(t, got.LockDeviceID)
	assert.Equal(t, int64(7), *got.LockDeviceID)

	// first delivery consumed the entry
	err = svc.Notify(ctx, code, "radiocode", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTriggerExpiry(t *testing.T) {
	svc, now := newTestTrigger(t, &fakeLocker{}, nil)
	ctx := context.Background()

	code, err := svc.Create(ctx, 1, uuid.New(), 1)
	require.NoError(t, err)

	*now = now.Add(2 * time.Second)

	err = svc.Notify(ctx, code, "radiocode", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Register(ctx, code, func(*models.Token) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTriggerUnknownCode(t *testing.T) {
	svc, _ := newTestTrigger(t, &fakeLocker{}, nil)

	_, err := svc.Register(context.Background(), "nope", func(*models.Token) {})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Notify(context.Background(), "nope", "radiocode", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTriggerLockFailurePropagates(t *testing.T) {
	svc, _ := newTestTrigger(t, &fakeLocker{err: ErrInvalidCode}, nil)
	ctx := context.Background()

	code, err := svc.Create(ctx, 1, uuid.New(), 60)
	require.NoError(t, err)

	err = svc.Notify(ctx, code, "radiocode", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestTriggerSignaturePassedToLocker(t *testing.T) {
	locker := &fakeLocker{}
	svc, _ := newTestTrigger(t, locker, nil)
	ctx := context.Background()

	code, err := svc.Create(ctx, 1, uuid.New(), 60)
	require.NoError(t, err)

	require.NoError(t, svc.Notify(ctx, code, "radiocode", "sig"))
	require.NotNil(t, locker.signed)
	assert.Equal(t, code+"radiocode", locker.signed.Data)
	assert.Equal(t, "sig", locker.signed.Signature)
}

func TestTriggerFixedCodes(t *testing.T) {
	cfg := &config.Config{TriggerTTLSeconds: 60, UseFixedTriggerCodes: true}
	svc, _ := newTestTrigger(t, &fakeLocker{}, cfg)

	deviceUUID := uuid.New()
	code, err := svc.Create(context.Background(), 1, deviceUUID, 60)
	require.NoError(t, err)
	assert.Equal(t, deviceUUID.String(), code)
}

func TestTriggerDuplicateDeliveryTolerated(t *testing.T) {
	svc, _ := newTestTrigger(t, &fakeLocker{}, nil)
	ctx := context.Background()

	code, err := svc.Create(ctx, 1, uuid.New(), 60)
	require.NoError(t, err)

	deliveries := 0
	_, err = svc.Register(ctx, code, func(*models.Token) { deliveries++ })
	require.NoError(t, err)

	tok := &models.Token{UUID: uuid.New(), State: models.TokenStateLocked}
	svc.localDeliver(code, tok)
	svc.localDeliver(code, tok) // duplicate broadcast, entry already gone

	assert.Equal(t, 1, deliveries)
}
