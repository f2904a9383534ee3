package lib

import (
	"context"
	"fmt"
	"sync"

	"tix/src/types"

	"github.com/shopspring/decimal"
)

// CreateTransactionInput carries everything the gateway needs to open a
// transaction for an order. CallbackURL is where the gateway reports
// the outcome, ReturnURL is where the buyer lands afterwards.
type CreateTransactionInput struct {
	OrderID     uint
	UserEmail   string
	Description string
	Amount      decimal.Decimal
	Currency    string
	CallbackURL string
	ReturnURL   string
}

type CreateTransactionResult struct {
	TransactionID string
	RedirectURL   string
}

// PaymentGateway is the narrow interface to the payment provider. Both
// calls may be retried; GetTransactionStatus must be safe to call any
// number of times.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (types.GatewayStatus, error)
}

var paymentGateway PaymentGateway

func GetPaymentGateway() PaymentGateway {
	if paymentGateway != nil {
		return paymentGateway
	}
	paymentGateway = &StripeGateway{}
	return paymentGateway
}

// NewPaymentGateway Replace gateway instance with custom implementation
func NewPaymentGateway(g PaymentGateway) PaymentGateway {
	paymentGateway = g
	return paymentGateway
}

// FakeGateway is an in-memory gateway used by tests. Statuses maps
// transaction ids to the status reported back; CreateErr/StatusErr
// force failures.
type FakeGateway struct {
	mu        sync.Mutex
	seq       int
	Statuses  map[string]types.GatewayStatus
	CreateErr error
	StatusErr error
}

func (f *FakeGateway) CreateTransaction(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error) {
	if f.CreateErr != nil {
		return CreateTransactionResult{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("txn_%d_%d", in.OrderID, f.seq)
	if f.Statuses == nil {
		f.Statuses = map[string]types.GatewayStatus{}
	}
	f.Statuses[id] = types.GATEWAY_AWAITING
	return CreateTransactionResult{
		TransactionID: id,
		RedirectURL:   fmt.Sprintf("https://pay.example.com/%s", id),
	}, nil
}

func (f *FakeGateway) GetTransactionStatus(ctx context.Context, transactionID string) (types.GatewayStatus, error) {
	if f.StatusErr != nil {
		return "", f.StatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.Statuses[transactionID]
	if !ok {
		return "", fmt.Errorf("unknown transaction %s", transactionID)
	}
	return status, nil
}

// SetStatus marks a fake transaction with the given status, simulating
// the buyer completing or abandoning payment.
func (f *FakeGateway) SetStatus(transactionID string, status types.GatewayStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Statuses == nil {
		f.Statuses = map[string]types.GatewayStatus{}
	}
	f.Statuses[transactionID] = status
}
