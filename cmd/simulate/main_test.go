package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
	"donation-gate/internal/infrastructure/payment"
)

func TestSettleReportsFailures(t *testing.T) {
	gateway := payment.NewMockGateway("https://mock-gateway.local", 0)

	if err := settle(gateway, "missing-pref", "PX1", payment.StatusApproved); !errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected for unknown preference, got %v", err)
	}

	charge, err := gateway.OpenCharge(context.Background(), payment.ChargeRequest{IntentID: uuid.New(), Amount: decimal.NewFromInt(10), Currency: "BRL"})
	if err != nil {
		t.Fatalf("open charge: %v", err)
	}
	if err := settle(gateway, charge.ReferenceID, "PX2", payment.StatusApproved); err != nil {
		t.Fatalf("settle: %v", err)
	}
	txn, err := gateway.TransactionStatus(context.Background(), "PX2")
	if err != nil || !txn.Approved() {
		t.Fatalf("expected approved transaction, got %+v, %v", txn, err)
	}
}
