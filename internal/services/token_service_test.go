package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"testing"

	"github.com/cashtoken-io/backend/internal/codec"
	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTokenStore struct {
	token      *models.Token
	lockDenied bool
	rejected   bool
}

func (f *fakeTokenStore) Insert(ctx context.Context, t *models.Token) error {
	f.token = t
	return nil
}

func (f *fakeTokenStore) FindByUUID(ctx context.Context, uid uuid.UUID) (*models.Token, error) {
	if f.token == nil || f.token.UUID != uid {
		return nil, pgx.ErrNoRows
	}
	cp := *f.token
	return &cp, nil
}

func (f *fakeTokenStore) FindByPlainCode(ctx context.Context, plainCode string) (*models.Token, error) {
	if f.token == nil || f.token.State != models.TokenStateOpen ||
		f.token.PlainCode == nil || *f.token.PlainCode != plainCode {
		return nil, pgx.ErrNoRows
	}
	cp := *f.token
	return &cp, nil
}

func (f *fakeTokenStore) Lock(ctx context.Context, id, lockDeviceID int64) (bool, error) {
	if f.lockDenied || f.token == nil || f.token.ID != id || f.token.State != models.TokenStateOpen {
		return false, nil
	}
	f.token.State = models.TokenStateLocked
	f.token.LockDeviceID = &lockDeviceID
	return true, nil
}

func (f *fakeTokenStore) Reject(ctx context.Context, id int64) (bool, error) {
	if f.token == nil || f.token.ID != id || f.token.State != models.TokenStateOpen {
		return false, nil
	}
	f.token.State = models.TokenStateRejected
	f.token.SecureCode = nil
	f.token.PlainCode = nil
	f.rejected = true
	return true, nil
}

func (f *fakeTokenStore) Confirm(ctx context.Context, id int64, state string, amount int64,
	lockRefName *string, processingInfo json.RawMessage, spawn *models.Token) (bool, error) {
	return false, nil
}

func (f *fakeTokenStore) MarkDeleted(ctx context.Context, ownerID int64, deviceUUID, tokenUUID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeTokenStore) ExpireOverdue(ctx context.Context) ([]models.Token, error) {
	return nil, nil
}

func (f *fakeTokenStore) UpdateFields(ctx context.Context, ownerID int64, tokenUUID uuid.UUID,
	clearState *int, info json.RawMessage) (*models.Token, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeTokenStore) ListByOwner(ctx context.Context, ownerID int64, filter repositories.TokenFilter) ([]models.Token, error) {
	return nil, nil
}

type fakeDeviceStore struct {
	byID map[int64]*models.Device
}

func (f *fakeDeviceStore) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeDeviceStore) FindByCustomerAndUUID(ctx context.Context, customerID int64, uid uuid.UUID) (*models.Device, error) {
	for _, d := range f.byID {
		if d.CustomerID == customerID && d.UUID == uid {
			return d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func enginePubKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

type lockFixture struct {
	svc     *TokenService
	store   *fakeTokenStore
	devices *fakeDeviceStore
	cfg     *config.Config
	cash    *models.Device
	radio   string
}

func newLockFixture(t *testing.T) *lockFixture {
	t.Helper()
	pubPEM := enginePubKey(t)

	secret, err := codec.RandomSecret(6)
	require.NoError(t, err)
	secure, err := codec.Encode(pubPEM, secret)
	require.NoError(t, err)

	ownerDevice := &models.Device{ID: 1, CustomerID: 1, UUID: uuid.New(), Type: models.DeviceTypeToken, PubKey: pubPEM}
	cashDevice := &models.Device{ID: 2, CustomerID: 1, UUID: uuid.New(), Type: models.DeviceTypeATM}

	token := &models.Token{
		ID:            10,
		UUID:          uuid.New(),
		OwnerID:       1,
		OwnerDeviceID: ownerDevice.ID,
		Type:          models.TokenTypeCashout,
		State:         models.TokenStateOpen,
		Amount:        5000,
		Symbol:        "EUR",
		SecureCode:    &secure,
	}

	store := &fakeTokenStore{token: token}
	devices := &fakeDeviceStore{byID: map[int64]*models.Device{1: ownerDevice, 2: cashDevice}}
	cfg := &config.Config{SecureCodeLen: 6, PlainCodeLen: 6, AllowInterCustomerClearing: true}

	return &lockFixture{
		svc:     NewTokenService(store, devices, nil, notify.New(zap.NewNop()), cfg, zap.NewNop()),
		store:   store,
		devices: devices,
		cfg:     cfg,
		cash:    cashDevice,
		radio:   token.UUID.String() + hex.EncodeToString(secret),
	}
}

func (fx *lockFixture) wrongRadio() string {
	return fx.store.token.UUID.String() + hex.EncodeToString([]byte{0, 1, 2, 3, 4, 5})
}

func TestVerifyAndLockClaimsOpenToken(t *testing.T) {
	fx := newLockFixture(t)

	got, err := fx.svc.VerifyAndLock(context.Background(), fx.cash.CustomerID, fx.cash.UUID, fx.radio)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStateLocked, got.State)
	require.NotNil(t, got.LockDeviceID)
	assert.Equal(t, fx.cash.ID, *got.LockDeviceID)
	assert.Nil(t, got.SecureCode, "secrets never leave the engine after creation")
	assert.Equal(t, models.TokenStateLocked, fx.store.token.State)
}

func TestVerifyAndLockWrongCodeRejects(t *testing.T) {
	fx := newLockFixture(t)

	_, err := fx.svc.VerifyAndLock(context.Background(), fx.cash.CustomerID, fx.cash.UUID, fx.wrongRadio())
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.True(t, fx.store.rejected)
	assert.Equal(t, models.TokenStateRejected, fx.store.token.State)
	assert.Nil(t, fx.store.token.SecureCode)
}

func TestVerifyAndLockAfterRejection(t *testing.T) {
	fx := newLockFixture(t)
	ctx := context.Background()

	_, err := fx.svc.VerifyAndLock(ctx, fx.cash.CustomerID, fx.cash.UUID, fx.wrongRadio())
	require.ErrorIs(t, err, ErrInvalidCode)

	// the correct code is worthless once the token left OPEN
	_, err = fx.svc.VerifyAndLock(ctx, fx.cash.CustomerID, fx.cash.UUID, fx.radio)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NotErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, models.TokenStateRejected, fx.store.token.State)
}

func TestVerifyAndLockSettledToken(t *testing.T) {
	fx := newLockFixture(t)
	fx.store.token.State = models.TokenStateCompleted
	fx.store.token.SecureCode = nil

	_, err := fx.svc.VerifyAndLock(context.Background(), fx.cash.CustomerID, fx.cash.UUID, fx.radio)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.False(t, fx.store.rejected)
}

func TestVerifyAndLockConcurrentClaim(t *testing.T) {
	fx := newLockFixture(t)
	fx.store.lockDenied = true

	_, err := fx.svc.VerifyAndLock(context.Background(), fx.cash.CustomerID, fx.cash.UUID, fx.radio)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestVerifyAndLockUnknownToken(t *testing.T) {
	fx := newLockFixture(t)

	_, err := fx.svc.VerifyAndLock(context.Background(), fx.cash.CustomerID, fx.cash.UUID,
		uuid.NewString()+"00ff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyAndLockForeignToken(t *testing.T) {
	fx := newLockFixture(t)
	fx.cfg.AllowInterCustomerClearing = false
	foreign := &models.Device{ID: 3, CustomerID: 2, UUID: uuid.New(), Type: models.DeviceTypeATM}
	fx.devices.byID[3] = foreign

	_, err := fx.svc.VerifyAndLock(context.Background(), foreign.CustomerID, foreign.UUID, fx.radio)
	assert.ErrorIs(t, err, ErrForeignToken)
	assert.Equal(t, models.TokenStateRejected, fx.store.token.State)
}
