package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cashtoken-io/backend/internal/codec"
	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// createAttempts bounds the uniqueness retry loop during token creation.
const createAttempts = 10

// SignedData carries a detached signature over a string payload, presented on
// the signed trigger path.
type SignedData struct {
	Data      string
	Signature string
}

type CreateTokenRequest struct {
	DeviceUUID uuid.UUID
	Type       string
	Amount     int64
	Symbol     string
	RefName    *string
	Info       json.RawMessage
	Expires    *time.Time
}

type ConfirmRequest struct {
	State          string
	LockRefName    *string
	Amount         *int64
	ProcessingInfo json.RawMessage
}

// TokenStore narrows the token repository to what the engine uses, so the
// state-machine branches can be exercised without a live store.
type TokenStore interface {
	Insert(ctx context.Context, t *models.Token) error
	FindByUUID(ctx context.Context, uid uuid.UUID) (*models.Token, error)
	FindByPlainCode(ctx context.Context, plainCode string) (*models.Token, error)
	Lock(ctx context.Context, id, lockDeviceID int64) (bool, error)
	Reject(ctx context.Context, id int64) (bool, error)
	Confirm(ctx context.Context, id int64, state string, amount int64,
		lockRefName *string, processingInfo json.RawMessage, spawn *models.Token) (bool, error)
	MarkDeleted(ctx context.Context, ownerID int64, deviceUUID, tokenUUID uuid.UUID) (bool, error)
	ExpireOverdue(ctx context.Context) ([]models.Token, error)
	UpdateFields(ctx context.Context, ownerID int64, tokenUUID uuid.UUID,
		clearState *int, info json.RawMessage) (*models.Token, error)
	ListByOwner(ctx context.Context, ownerID int64, f repositories.TokenFilter) ([]models.Token, error)
}

// DeviceStore is the device lookup slice the engine needs.
type DeviceStore interface {
	DeviceResolver
	FindByID(ctx context.Context, id int64) (*models.Device, error)
}

// TokenService owns the token entity and its state machine. The relational
// store is the single source of truth; no token state is cached in memory.
type TokenService struct {
	tokens   TokenStore
	devices  DeviceStore
	clearing *ClearingService
	notifier *notify.Notifier
	cfg      *config.Config
	log      *zap.Logger
}

func NewTokenService(
	tokens TokenStore,
	devices DeviceStore,
	clearing *ClearingService,
	notifier *notify.Notifier,
	cfg *config.Config,
	log *zap.Logger,
) *TokenService {
	return &TokenService{
		tokens:   tokens,
		devices:  devices,
		clearing: clearing,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Create issues a fresh OPEN token whose secure code is bound to the owner
// device's public key. This is the only operation that returns the secret
// components; the device decrypts them locally and presents the plaintext
// later as proof of possession.
func (s *TokenService) Create(ctx context.Context, customerID int64, req CreateTokenRequest) (*models.Token, error) {
	if req.Type != models.TokenTypeCashout && req.Type != models.TokenTypeCashin {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrValidation, req.Type)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	device, err := s.devices.FindByCustomerAndUUID(ctx, customerID, req.DeviceUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, req.DeviceUUID)
	}
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= createAttempts; attempt++ {
		token, err := s.buildToken(customerID, device, req)
		if err != nil {
			return nil, err
		}

		err = s.tokens.Insert(ctx, token)
		if repositories.IsUniqueViolation(err) {
			// a generated uuid or plain code collided; expected to be
			// astronomically rare, a single hit is noise
			s.log.Warn("token code collision, retrying",
				zap.Int("attempt", attempt),
				zap.Int64("customer_id", customerID))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.notifyTokenChange(ctx, token.OwnerID, token.UUID)
		return token, nil
	}

	s.log.Error("token creation exhausted uniqueness retries",
		zap.Int64("customer_id", customerID),
		zap.Int("attempts", createAttempts))
	return nil, ErrCreateExhausted
}

func (s *TokenService) buildToken(customerID int64, device *models.Device, req CreateTokenRequest) (*models.Token, error) {
	token := &models.Token{
		UUID:          uuid.New(),
		OwnerID:       customerID,
		OwnerDeviceID: device.ID,
		Type:          req.Type,
		State:         models.TokenStateOpen,
		Amount:        req.Amount,
		Symbol:        req.Symbol,
		RefName:       req.RefName,
		Info:          req.Info,
		Expires:       req.Expires,
	}

	var secret []byte
	if s.cfg.UsePlainCodes {
		plain, err := codec.RandomDecimal(s.cfg.PlainCodeLen)
		if err != nil {
			return nil, err
		}
		token.PlainCode = &plain

		digits, err := codec.RandomDecimal(s.cfg.SecureCodeLen)
		if err != nil {
			return nil, err
		}
		secret = []byte(digits)
	} else {
		var err error
		secret, err = codec.RandomSecret(s.cfg.SecureCodeLen)
		if err != nil {
			return nil, err
		}
	}

	secure, err := codec.Encode(device.PubKey, secret)
	if err != nil {
		return nil, err
	}
	token.SecureCode = &secure
	return token, nil
}

// VerifyAndLock resolves the presenting cash device by UUID and runs the
// verify-and-lock protocol.
func (s *TokenService) VerifyAndLock(ctx context.Context, cashCustomerID int64, cashDeviceUUID uuid.UUID, radiocode string) (*models.Token, error) {
	device, err := s.devices.FindByCustomerAndUUID(ctx, cashCustomerID, cashDeviceUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, cashDeviceUUID)
	}
	if err != nil {
		return nil, err
	}
	return s.verifyAndLock(ctx, device, radiocode, nil)
}

// VerifyAndLockByDeviceID is the trigger-flow entry: the cash device was
// resolved when the trigger was created, and the mobile caller may supply a
// signature over triggercode+radiocode.
func (s *TokenService) VerifyAndLockByDeviceID(ctx context.Context, cashDeviceID int64, radiocode string, signed *SignedData) (*models.Token, error) {
	device, err := s.devices.FindByID(ctx, cashDeviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: cash device %d", ErrNotFound, cashDeviceID)
	}
	if err != nil {
		return nil, err
	}
	return s.verifyAndLock(ctx, device, radiocode, signed)
}

func (s *TokenService) verifyAndLock(ctx context.Context, cashDevice *models.Device, radiocode string, signed *SignedData) (*models.Token, error) {
	parsed, err := parseRadioCode(radiocode, s.cfg.PlainCodeLen)
	if err != nil {
		return nil, err
	}

	var token *models.Token
	if parsed.TokenUUID != nil {
		token, err = s.tokens.FindByUUID(ctx, *parsed.TokenUUID)
	} else {
		token, err = s.tokens.FindByPlainCode(ctx, parsed.PlainCode)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: token", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// a token that already left OPEN is spent; even the correct code must not
	// look like a code failure
	if token.State != models.TokenStateOpen {
		return nil, ErrNotOpen
	}

	ownerDevice, err := s.devices.FindByID(ctx, token.OwnerDeviceID)
	if err != nil {
		return nil, err
	}

	if signed != nil {
		if err := codec.VerifySignedString(ownerDevice.PubKey, signed.Data, signed.Signature); err != nil {
			s.reject(ctx, token)
			return nil, fmt.Errorf("%w: bad signature", ErrInvalidCode)
		}
	}

	if token.OwnerID != cashDevice.CustomerID && !s.cfg.AllowInterCustomerClearing {
		s.reject(ctx, token)
		return nil, ErrForeignToken
	}

	// the deterministic re-encryption check: never decrypt, just compare
	expected, err := codec.Encode(ownerDevice.PubKey, parsed.Secret)
	if err != nil {
		return nil, err
	}
	if token.SecureCode == nil || *token.SecureCode != expected {
		s.reject(ctx, token)
		return nil, ErrInvalidCode
	}

	locked, err := s.tokens.Lock(ctx, token.ID, cashDevice.ID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrNotOpen
	}

	token.State = models.TokenStateLocked
	token.LockDeviceID = &cashDevice.ID
	token.StripSecrets()
	s.notifyTokenChange(ctx, token.OwnerID, token.UUID)
	return token, nil
}

// reject consumes the token after a failed verification. Losing the race to a
// concurrent lock is fine; the change event fires only when the row moved.
func (s *TokenService) reject(ctx context.Context, token *models.Token) {
	rejected, err := s.tokens.Reject(ctx, token.ID)
	if err != nil {
		s.log.Error("token rejection failed", zap.String("uuid", token.UUID.String()), zap.Error(err))
		return
	}
	if rejected {
		s.notifyTokenChange(ctx, token.OwnerID, token.UUID)
	}
}

// Confirm finalizes a LOCKED token. Only the device holding the lock may
// confirm; partial cashouts spawn the remainder in the same transaction.
func (s *TokenService) Confirm(ctx context.Context, customerID int64, cashDeviceUUID uuid.UUID, tokenUUID uuid.UUID, req ConfirmRequest) (*models.Token, error) {
	if !models.IsConfirmState(req.State) {
		return nil, fmt.Errorf("%w: %q is not a valid confirmation state", ErrValidation, req.State)
	}

	device, err := s.devices.FindByCustomerAndUUID(ctx, customerID, cashDeviceUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, cashDeviceUUID)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.FindByUUID(ctx, tokenUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: token %s", ErrNotFound, tokenUUID)
	}
	if err != nil {
		return nil, err
	}

	if token.LockDeviceID == nil || *token.LockDeviceID != device.ID {
		return nil, ErrWrongLocker
	}

	amount := token.Amount
	if req.Amount != nil {
		if token.Type == models.TokenTypeCashout && *req.Amount > token.Amount {
			return nil, ErrIllegalAmountIncrease
		}
		amount = *req.Amount
	}

	var spawn *models.Token
	if s.cfg.AllowPartialCashout && req.State == models.TokenStateCompleted &&
		token.Type == models.TokenTypeCashout && amount < token.Amount {
		spawn, err = s.buildPartialRemainder(token, token.Amount-amount)
		if err != nil {
			return nil, err
		}
	}

	confirmed, err := s.tokens.Confirm(ctx, token.ID, req.State, amount, req.LockRefName, req.ProcessingInfo, spawn)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrNotLocked
	}

	token.State = req.State
	token.Amount = amount
	if req.LockRefName != nil {
		token.LockRefName = req.LockRefName
	}
	if req.ProcessingInfo != nil {
		token.ProcessingInfo = req.ProcessingInfo
	}
	token.StripSecrets()

	s.notifyTokenChange(ctx, token.OwnerID, token.UUID)
	if device.CustomerID != token.OwnerID {
		s.notifyTokenChange(ctx, device.CustomerID, token.UUID)
	}
	if spawn != nil {
		s.notifyTokenChange(ctx, spawn.OwnerID, spawn.UUID)
	}

	if req.State == models.TokenStateCompleted {
		if err := s.clearing.Add(ctx, token, device.CustomerID); err != nil {
			s.log.Error("clearing record failed",
				zap.String("uuid", token.UUID.String()), zap.Error(err))
		}
	}

	return token, nil
}

// buildPartialRemainder spawns the OPEN follow-up token for the uncashed
// amount, reusing the original codes so the same physical barcode stays valid.
func (s *TokenService) buildPartialRemainder(original *models.Token, remainder int64) (*models.Token, error) {
	info, err := json.Marshal(map[string]string{"source_token": original.UUID.String()})
	if err != nil {
		return nil, err
	}
	return &models.Token{
		UUID:          uuid.New(),
		OwnerID:       original.OwnerID,
		OwnerDeviceID: original.OwnerDeviceID,
		Type:          original.Type,
		State:         models.TokenStateOpen,
		Amount:        remainder,
		Symbol:        original.Symbol,
		SecureCode:    original.SecureCode,
		PlainCode:     original.PlainCode,
		RefName:       original.RefName,
		Info:          info,
		Expires:       original.Expires,
	}, nil
}

// Delete is the owner-initiated cancel of a still-OPEN token.
func (s *TokenService) Delete(ctx context.Context, customerID int64, deviceUUID, tokenUUID uuid.UUID) error {
	deleted, err := s.tokens.MarkDeleted(ctx, customerID, deviceUUID, tokenUUID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotOpen
	}
	s.notifyTokenChange(ctx, customerID, tokenUUID)
	return nil
}

// UpdateFields patches the non-lifecycle allow-list (clearstate, info).
func (s *TokenService) UpdateFields(ctx context.Context, customerID int64, tokenUUID uuid.UUID, clearState *int, info json.RawMessage) (*models.Token, error) {
	token, err := s.tokens.UpdateFields(ctx, customerID, tokenUUID, clearState, info)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: token %s", ErrNotFound, tokenUUID)
	}
	if err != nil {
		return nil, err
	}
	token.StripSecrets()
	return token, nil
}

func (s *TokenService) List(ctx context.Context, customerID int64, f repositories.TokenFilter) ([]models.Token, error) {
	tokens, err := s.tokens.ListByOwner(ctx, customerID, f)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].StripSecrets()
	}
	return tokens, nil
}

func (s *TokenService) Get(ctx context.Context, customerID int64, tokenUUID uuid.UUID) (*models.Token, error) {
	token, err := s.tokens.FindByUUID(ctx, tokenUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: token %s", ErrNotFound, tokenUUID)
	}
	if err != nil {
		return nil, err
	}
	if token.OwnerID != customerID {
		return nil, fmt.Errorf("%w: token %s", ErrNotFound, tokenUUID)
	}
	token.StripSecrets()
	return token, nil
}

// ExpireOverdue sweeps overdue OPEN tokens, firing a change event per token.
// Run periodically by the worker.
func (s *TokenService) ExpireOverdue(ctx context.Context) (int, error) {
	swept, err := s.tokens.ExpireOverdue(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range swept {
		s.notifyTokenChange(ctx, t.OwnerID, t.UUID)
	}
	return len(swept), nil
}

func (s *TokenService) notifyTokenChange(ctx context.Context, customerID int64, tokenUUID uuid.UUID) {
	payload, err := json.Marshal(map[string]string{"uuid": tokenUUID.String()})
	if err != nil {
		return
	}
	s.notifier.NotifyObservers(ctx, TokenScope(customerID), payload)
}

// TokenScope is the notifier scope for a customer's token changes.
func TokenScope(customerID int64) string {
	return "token:" + strconv.FormatInt(customerID, 10)
}
