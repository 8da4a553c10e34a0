package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
	"donation-gate/internal/infrastructure/payment"
	"donation-gate/internal/repo"
	"donation-gate/internal/token"
)

// Outcome describes what a reconciliation did.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
)

// Notification identifies a remote transaction. Either field may be empty,
// but not both.
type Notification struct {
	PaymentID   string
	ReferenceID string
}

type Checkout struct {
	Intent      *domain.Intent
	RedirectURL string
}

type Reconciliation struct {
	Outcome Outcome
	Status  payment.Status
	Intent  *domain.Intent
}

type IntentService interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*Checkout, error)
	// Reconcile revalidates a notification against the gateway and approves the
	// matching intent at most once. An unmatched approved transaction returns
	// domain.ErrNotFound alongside an OutcomeUnmatched result.
	Reconcile(ctx context.Context, n Notification) (*Reconciliation, error)
	// ReconcileIntent asks the gateway for any payment made against intent.
	ReconcileIntent(ctx context.Context, intent *domain.Intent) (*Reconciliation, error)
}

type IntentOptions struct {
	BaseURL  string
	Currency string
	Title    string
	Now      func() time.Time
}

type intentService struct {
	intentRepo repo.IntentRepo
	paymentGtw payment.PaymentGateway
	minter     token.Minter
	opts       IntentOptions
}

func NewIntentService(
	intentRepo repo.IntentRepo,
	paymentGtw payment.PaymentGateway,
	minter token.Minter,
	opts IntentOptions,
) IntentService {
	if opts.Currency == "" {
		opts.Currency = "BRL"
	}
	if opts.Title == "" {
		opts.Title = "Doação"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &intentService{
		intentRepo: intentRepo,
		paymentGtw: paymentGtw,
		minter:     minter,
		opts:       opts,
	}
}

func (s *intentService) callbacks() payment.Callbacks {
	return payment.Callbacks{
		Success:      s.opts.BaseURL + "/success.html",
		Failure:      s.opts.BaseURL + "/failure.html",
		Pending:      s.opts.BaseURL + "/pending.html",
		Notification: s.opts.BaseURL + "/webhook",
	}
}

func (s *intentService) CreateIntent(ctx context.Context, amount decimal.Decimal) (*Checkout, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	id := uuid.New()
	charge, err := s.paymentGtw.OpenCharge(ctx, payment.ChargeRequest{
		IntentID:  id,
		Title:     s.opts.Title,
		Amount:    amount,
		Currency:  s.opts.Currency,
		Callbacks: s.callbacks(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) || errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	intent := &domain.Intent{
		ID:                  id,
		ExternalReferenceID: charge.ReferenceID,
		Amount:              amount,
		Currency:            s.opts.Currency,
		Status:              domain.IntentPending,
		CreatedAt:           s.opts.Now().UTC(),
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		// The remote preference stays open with no local record.
		log.Printf("Orphaned preference %s: persist intent %s failed: %v", charge.ReferenceID, id, err)
		return nil, err
	}

	return &Checkout{Intent: intent, RedirectURL: charge.RedirectURL}, nil
}

func (s *intentService) Reconcile(ctx context.Context, n Notification) (*Reconciliation, error) {
	n.PaymentID = strings.TrimSpace(n.PaymentID)
	n.ReferenceID = strings.TrimSpace(n.ReferenceID)

	if n.PaymentID == "" {
		if n.ReferenceID == "" {
			return nil, fmt.Errorf("%w: notification carries no payment or reference id", domain.ErrInvalidArgument)
		}
		intent, err := s.intentRepo.FindByReference(ctx, n.ReferenceID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("Unmatched notification for reference %s", n.ReferenceID)
			return &Reconciliation{Outcome: OutcomeUnmatched}, err
		}
		if err != nil {
			return nil, err
		}
		return s.ReconcileIntent(ctx, intent)
	}

	// The status in the notification itself is never trusted.
	txn, err := s.paymentGtw.TransactionStatus(ctx, n.PaymentID)
	if err != nil {
		return nil, err
	}
	if n.ReferenceID != "" && txn.ReferenceID != "" && n.ReferenceID != txn.ReferenceID {
		log.Printf("Notification for payment %s named reference %s, gateway says %s", n.PaymentID, n.ReferenceID, txn.ReferenceID)
	}
	return s.apply(ctx, txn, nil)
}

func (s *intentService) ReconcileIntent(ctx context.Context, intent *domain.Intent) (*Reconciliation, error) {
	if intent.IsApproved() {
		return &Reconciliation{Outcome: OutcomeDuplicate, Status: payment.StatusApproved, Intent: intent}, nil
	}

	txns, err := s.paymentGtw.SearchTransactions(ctx, intent.ID)
	if err != nil {
		return nil, err
	}

	var last payment.Status
	for i := range txns {
		txn := txns[i]
		if txn.IntentID != intent.ID.String() {
			continue
		}
		if txn.ReferenceID != "" && txn.ReferenceID != intent.ExternalReferenceID {
			continue
		}
		last = txn.Status
		if txn.Approved() {
			return s.apply(ctx, &txn, intent)
		}
	}
	return &Reconciliation{Outcome: OutcomeIgnored, Status: last, Intent: intent}, nil
}

// apply runs the approval for a transaction whose status came from the gateway.
func (s *intentService) apply(ctx context.Context, txn *payment.Transaction, intent *domain.Intent) (*Reconciliation, error) {
	if !txn.Approved() {
		return &Reconciliation{Outcome: OutcomeIgnored, Status: txn.Status, Intent: intent}, nil
	}

	if intent == nil {
		var err error
		intent, err = s.resolve(ctx, txn)
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("Unmatched approved payment %s (reference %q, external reference %q)", txn.PaymentID, txn.ReferenceID, txn.IntentID)
			return &Reconciliation{Outcome: OutcomeUnmatched, Status: txn.Status}, err
		}
		if err != nil {
			return nil, err
		}
	}

	if intent.IsApproved() {
		s.logDuplicate(intent, txn)
		return &Reconciliation{Outcome: OutcomeDuplicate, Status: txn.Status, Intent: intent}, nil
	}

	tok, err := s.minter.Mint()
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	approval := domain.Approval{
		PaymentID:  txn.PaymentID,
		Token:      tok,
		ApprovedAt: s.opts.Now().UTC(),
	}

	applied, err := s.intentRepo.Approve(ctx, intent.ExternalReferenceID, approval)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			log.Printf("Integrity failure approving intent %s: %v", intent.ID, err)
		}
		return nil, err
	}

	if !applied {
		current, err := s.intentRepo.FindByReference(ctx, intent.ExternalReferenceID)
		if err != nil {
			return nil, err
		}
		if !current.IsApproved() {
			return nil, fmt.Errorf("%w: approval of %s not applied but intent is %s", domain.ErrIntegrity, intent.ID, current.Status)
		}
		s.logDuplicate(current, txn)
		return &Reconciliation{Outcome: OutcomeDuplicate, Status: txn.Status, Intent: current}, nil
	}

	approved := *intent
	approved.Apply(approval)
	log.Printf("Intent %s approved by payment %s", approved.ID, txn.PaymentID)
	return &Reconciliation{Outcome: OutcomeApproved, Status: txn.Status, Intent: &approved}, nil
}

// resolve finds the intent a transaction belongs to, by preference first and
// by the external reference we attached otherwise.
func (s *intentService) resolve(ctx context.Context, txn *payment.Transaction) (*domain.Intent, error) {
	if txn.ReferenceID != "" {
		return s.intentRepo.FindByReference(ctx, txn.ReferenceID)
	}
	if txn.IntentID != "" {
		id, err := uuid.Parse(txn.IntentID)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		return s.intentRepo.FindByID(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *intentService) logDuplicate(intent *domain.Intent, txn *payment.Transaction) {
	if intent.ExternalPaymentID != txn.PaymentID {
		log.Printf("Intent %s already approved by payment %s, ignoring payment %s", intent.ID, intent.ExternalPaymentID, txn.PaymentID)
	}
}
