package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/events"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedTriggerCodesParam lets a single customer opt into deterministic trigger
// codes without the global demo flag.
const fixedTriggerCodesParam = "USE_FIXED_TRIGGER_CODES"

// TokenLocker is the slice of the token engine the coordinator needs.
type TokenLocker interface {
	VerifyAndLockByDeviceID(ctx context.Context, cashDeviceID int64, radiocode string, signed *SignedData) (*models.Token, error)
}

// DeviceResolver and ParamReader narrow the repositories to what the
// coordinator uses, so it can be instantiated cleanly in tests.
type DeviceResolver interface {
	FindByCustomerAndUUID(ctx context.Context, customerID int64, uid uuid.UUID) (*models.Device, error)
}

type ParamReader interface {
	ReadBool(ctx context.Context, customerID int64, key string) (bool, error)
}

// TriggerDelivery is the broadcast payload fanned out after a successful
// verify-and-lock on the trigger path.
type TriggerDelivery struct {
	TriggerCode string        `json:"triggercode"`
	Token       *models.Token `json:"token"`
}

type triggerEntry struct {
	CashDeviceID int64     `json:"cash_device_id"`
	Expires      time.Time `json:"expires"`

	// deliver is set only on the node holding the waiting connection
	deliver func(*models.Token)
}

// TriggerService hands a freshly locked token from a mobile device to a cash
// device the mobile has no channel to. Entries are ephemeral: a local table
// per process, mirrored into the shared key-value store with a TTL when
// cluster mode is on, so the node receiving the mobile call and the node
// holding the cash device's connection need not be the same.
type TriggerService struct {
	locker  TokenLocker
	devices DeviceResolver
	params  ParamReader
	kv      *redis.Client
	bus     events.Bus
	mqtt    *events.MQTTPublisher
	cfg     *config.Config
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*triggerEntry
}

func NewTriggerService(
	locker TokenLocker,
	devices DeviceResolver,
	params ParamReader,
	kv *redis.Client,
	bus events.Bus,
	mqtt *events.MQTTPublisher,
	cfg *config.Config,
	log *zap.Logger,
) *TriggerService {
	return &TriggerService{
		locker:  locker,
		devices: devices,
		params:  params,
		kv:      kv,
		bus:     bus,
		mqtt:    mqtt,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*triggerEntry),
	}
}

// Start subscribes the process to the cluster-wide trigger broadcast.
func (s *TriggerService) Start(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Subscribe(ctx, events.ChannelTrigger, func(payload []byte) {
		var d TriggerDelivery
		if err := json.Unmarshal(payload, &d); err != nil {
			s.log.Error("malformed trigger broadcast", zap.Error(err))
			return
		}
		s.localDeliver(d.TriggerCode, d.Token)
	})
}

// Create registers a new trigger for a cash device and returns its code.
func (s *TriggerService) Create(ctx context.Context, customerID int64, deviceUUID uuid.UUID, ttlSeconds int) (string, error) {
	s.sweep()

	device, err := s.devices.FindByCustomerAndUUID(ctx, customerID, deviceUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: device %s", ErrNotFound, deviceUUID)
	}
	if err != nil {
		return "", err
	}

	if ttlSeconds <= 0 {
		ttlSeconds = s.cfg.TriggerTTLSeconds
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	fixed := s.cfg.UseFixedTriggerCodes
	if !fixed {
		fixed, err = s.params.ReadBool(ctx, customerID, fixedTriggerCodesParam)
		if err != nil {
			return "", err
		}
	}

	code := uuid.NewString()
	if fixed {
		code = deviceUUID.String()
	}

	entry := &triggerEntry{
		CashDeviceID: device.ID,
		Expires:      s.now().Add(ttl),
	}

	s.mu.Lock()
	s.entries[code] = entry
	s.mu.Unlock()

	if s.kv != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return "", err
		}
		if err := s.kv.Set(ctx, triggerKey(code), data, ttl).Err(); err != nil {
			return "", err
		}
	}

	return code, nil
}

// Register attaches this node's delivery handle to the trigger and returns
// the entry's expiry so the caller can bound its wait by the same TTL.
func (s *TriggerService) Register(ctx context.Context, code string, deliver func(*models.Token)) (time.Time, error) {
	s.sweep()

	entry, err := s.resolve(ctx, code)
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	entry.deliver = deliver
	s.mu.Unlock()
	return entry.Expires, nil
}

// Notify is the mobile device's callback: verify and lock the token for the
// trigger's cash device, then push it to whichever node holds the waiter.
func (s *TriggerService) Notify(ctx context.Context, code, radiocode, signature string) error {
	s.sweep()

	entry, err := s.resolve(ctx, code)
	if err != nil {
		return err
	}

	var signed *SignedData
	if signature != "" {
		signed = &SignedData{Data: code + radiocode, Signature: signature}
	}

	token, err := s.locker.VerifyAndLockByDeviceID(ctx, entry.CashDeviceID, radiocode, signed)
	if err != nil {
		return err
	}

	if s.kv != nil {
		if err := s.kv.Del(ctx, triggerKey(code)).Err(); err != nil {
			s.log.Warn("trigger mirror delete failed", zap.String("code", code), zap.Error(err))
		}
	}

	payload, err := json.Marshal(TriggerDelivery{TriggerCode: code, Token: token})
	if err != nil {
		return err
	}

	if s.mqtt != nil {
		if err := s.mqtt.Publish("cashtoken/trigger/"+code, payload); err != nil {
			s.log.Warn("mqtt trigger publish failed", zap.String("code", code), zap.Error(err))
		}
	}

	if s.bus != nil {
		// every node, this one included, checks for the waiting handle on
		// its own subscription
		return s.bus.Publish(ctx, events.ChannelTrigger, payload)
	}
	s.localDeliver(code, token)
	return nil
}

// resolve looks a trigger up locally, falling back to the shared store and
// caching the result. Expired entries count as absent.
func (s *TriggerService) resolve(ctx context.Context, code string) (*triggerEntry, error) {
	s.mu.Lock()
	entry, ok := s.entries[code]
	s.mu.Unlock()

	if ok {
		if s.now().After(entry.Expires) {
			return nil, fmt.Errorf("%w: trigger %s", ErrNotFound, code)
		}
		return entry, nil
	}

	if s.kv == nil {
		return nil, fmt.Errorf("%w: trigger %s", ErrNotFound, code)
	}

	data, err := s.kv.Get(ctx, triggerKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: trigger %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}

	entry = &triggerEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, err
	}
	if s.now().After(entry.Expires) {
		return nil, fmt.Errorf("%w: trigger %s", ErrNotFound, code)
	}

	s.mu.Lock()
	// keep an existing local entry; it may already carry a delivery handle
	if cached, ok := s.entries[code]; ok {
		entry = cached
	} else {
		s.entries[code] = entry
	}
	s.mu.Unlock()
	return entry, nil
}

// localDeliver hands the token to the waiting handle if this node holds it.
// First successful delivery wins and discards the entry; duplicates from
// best-effort pub/sub land on an absent entry and are ignored.
func (s *TriggerService) localDeliver(code string, token *models.Token) {
	s.mu.Lock()
	entry, ok := s.entries[code]
	if ok {
		delete(s.entries, code)
	}
	s.mu.Unlock()

	if !ok || entry.deliver == nil {
		return
	}
	entry.deliver(token)
}

// sweep lazily drops expired local entries; the shared-store mirror expires
// on its own TTL.
func (s *TriggerService) sweep() {
	now := s.now()
	s.mu.Lock()
	for code, entry := range s.entries {
		if now.After(entry.Expires) {
			delete(s.entries, code)
		}
	}
	s.mu.Unlock()
}

func triggerKey(code string) string {
	return "trigger:" + code
}
