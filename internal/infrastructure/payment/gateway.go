package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the processor's view of a transaction.
type Status string

const (
	StatusApproved   Status = "approved"
	StatusPending    Status = "pending"
	StatusInProcess  Status = "in_process"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusChargeback Status = "charged_back"
)

// Callbacks are the URLs the processor sends the donor and its notifications to.
type Callbacks struct {
	Success      string
	Failure      string
	Pending      string
	Notification string
}

type ChargeRequest struct {
	IntentID  uuid.UUID
	Title     string
	Amount    decimal.Decimal
	Currency  string
	Callbacks Callbacks
}

// Charge is the remote preference opened for a donation.
type Charge struct {
	ReferenceID string
	RedirectURL string
}

// Transaction is the authoritative state of a remote payment.
// ReferenceID is the preference the payment belongs to, IntentID is the
// external reference we attached when opening the charge. Either may be empty.
type Transaction struct {
	PaymentID   string
	ReferenceID string
	IntentID    string
	Status      Status
}

func (t Transaction) Approved() bool {
	return t.Status == StatusApproved
}

// PaymentGateway talks to the external processor. Implementations never retry;
// failures are reported as domain.ErrGatewayUnavailable or domain.ErrGatewayRejected.
type PaymentGateway interface {
	OpenCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	TransactionStatus(ctx context.Context, paymentID string) (*Transaction, error)
	SearchTransactions(ctx context.Context, intentID uuid.UUID) ([]Transaction, error)
}
