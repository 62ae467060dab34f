package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"go.uber.org/zap"
)

// clearingAccountParam is the customer parameter holding settlement account
// data; it is snapshotted into the clearing row at completion time.
const clearingAccountParam = "clearing-account"

// ClearingService records settlement rows when tokens complete. A CASHOUT
// debits the token owner and credits the cash-handling customer; CASHIN is the
// reverse. Read aggregation beyond the customer listing lives elsewhere.
type ClearingService struct {
	clearing *repositories.ClearingRepo
	params   *repositories.ParamRepo
	notifier *notify.Notifier
	log      *zap.Logger
}

func NewClearingService(
	clearing *repositories.ClearingRepo,
	params *repositories.ParamRepo,
	notifier *notify.Notifier,
	log *zap.Logger,
) *ClearingService {
	return &ClearingService{
		clearing: clearing,
		params:   params,
		notifier: notifier,
		log:      log,
	}
}

// Add writes the clearing record for a completed token, snapshotting the
// parties' account data as configured at this instant.
func (s *ClearingService) Add(ctx context.Context, token *models.Token, cashCustomerID int64) error {
	debitorID, creditorID := token.OwnerID, cashCustomerID
	if token.Type == models.TokenTypeCashin {
		debitorID, creditorID = creditorID, debitorID
	}

	debitorAccount, err := s.params.Read(ctx, debitorID, clearingAccountParam)
	if err != nil {
		return err
	}
	creditorAccount, err := s.params.Read(ctx, creditorID, clearingAccountParam)
	if err != nil {
		return err
	}

	record := &models.Clearing{
		TokenID:         token.ID,
		DebitorID:       debitorID,
		CreditorID:      creditorID,
		DebitorAccount:  debitorAccount,
		CreditorAccount: creditorAccount,
	}
	if err := s.clearing.Insert(ctx, record); err != nil {
		return err
	}

	s.notifyClearingChange(ctx, debitorID, token)
	if creditorID != debitorID {
		s.notifyClearingChange(ctx, creditorID, token)
	}
	return nil
}

func (s *ClearingService) List(ctx context.Context, customerID int64) ([]models.ClearingRow, error) {
	return s.clearing.ListByCustomer(ctx, customerID)
}

func (s *ClearingService) notifyClearingChange(ctx context.Context, customerID int64, token *models.Token) {
	payload, err := json.Marshal(map[string]string{"uuid": token.UUID.String()})
	if err != nil {
		return
	}
	s.notifier.NotifyObservers(ctx, ClearingScope(customerID), payload)
}

// ClearingScope is the notifier scope for a customer's clearing changes.
func ClearingScope(customerID int64) string {
	return "clearing:" + strconv.FormatInt(customerID, 10)
}
