package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
)

func TestMockGatewaySettleAndLookup(t *testing.T) {
	ctx := context.Background()
	gw := NewMockGateway("http://mock.local", 0)
	intentID := uuid.New()

	charge, err := gw.OpenCharge(ctx, ChargeRequest{IntentID: intentID, Amount: decimal.NewFromInt(10), Currency: "BRL"})
	if err != nil {
		t.Fatalf("open charge: %v", err)
	}

	if _, err := gw.Settle(charge.ReferenceID, "PX1", StatusApproved); err != nil {
		t.Fatalf("settle: %v", err)
	}

	txn, err := gw.TransactionStatus(ctx, "PX1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if txn.ReferenceID != charge.ReferenceID || txn.IntentID != intentID.String() || !txn.Approved() {
		t.Fatalf("unexpected transaction %+v", txn)
	}

	found, err := gw.SearchTransactions(ctx, intentID)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].PaymentID != "PX1" {
		t.Fatalf("unexpected search result %+v", found)
	}
}

func TestMockGatewayFailNext(t *testing.T) {
	ctx := context.Background()
	gw := NewMockGateway("http://mock.local", 0)
	gw.FailNext(domain.ErrGatewayUnavailable)

	_, err := gw.OpenCharge(ctx, ChargeRequest{IntentID: uuid.New(), Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected queued failure, got %v", err)
	}
	if _, err := gw.OpenCharge(ctx, ChargeRequest{IntentID: uuid.New(), Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("expected failure to be consumed, got %v", err)
	}
	if gw.Calls("OpenCharge") != 2 {
		t.Fatalf("expected 2 calls, got %d", gw.Calls("OpenCharge"))
	}
}

func TestMockGatewayUnknownPayment(t *testing.T) {
	gw := NewMockGateway("http://mock.local", 0)
	if _, err := gw.TransactionStatus(context.Background(), "nope"); !errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
}
