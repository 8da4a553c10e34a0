package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentApproved IntentStatus = "approved"
)

// Intent is one donation attempt. It is created pending and moves to approved
// at most once; it is never deleted.
type Intent struct {
	ID                  uuid.UUID       `json:"id"`
	ExternalReferenceID string          `json:"external_reference_id"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Status              IntentStatus    `json:"status"`
	ExternalPaymentID   string          `json:"external_payment_id,omitempty"`
	AccessToken         string          `json:"access_token,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
}

// Approval carries the fields written by the pending -> approved transition.
type Approval struct {
	PaymentID  string
	Token      string
	ApprovedAt time.Time
}

func (i *Intent) IsApproved() bool {
	return i.Status == IntentApproved
}

// Apply performs the transition in memory. It reports false and leaves the
// intent untouched unless the intent is still pending.
func (i *Intent) Apply(a Approval) bool {
	if i.Status != IntentPending {
		return false
	}
	approvedAt := a.ApprovedAt
	i.Status = IntentApproved
	i.ExternalPaymentID = a.PaymentID
	i.AccessToken = a.Token
	i.ApprovedAt = &approvedAt
	return true
}
