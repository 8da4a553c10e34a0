package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"donation-gate/internal/domain"
)

// MockGateway is an in-memory processor used by the simulator and tests.
// Charges are opened as preferences; Settle plays the donor paying one.
type MockGateway struct {
	mu           sync.RWMutex
	baseURL      string
	latency      time.Duration
	preferences  map[string]ChargeRequest
	transactions map[string]Transaction
	failures     []error
	calls        map[string]int
}

func NewMockGateway(baseURL string, latency time.Duration) *MockGateway {
	return &MockGateway{
		baseURL:      baseURL,
		latency:      latency,
		preferences:  make(map[string]ChargeRequest),
		transactions: make(map[string]Transaction),
		calls:        make(map[string]int),
	}
}

// FailNext queues err to be returned by the next gateway call, whatever it is.
func (g *MockGateway) FailNext(err error) {
	g.mu.Lock()
	g.failures = append(g.failures, err)
	g.mu.Unlock()
}

// Calls reports how many times op was invoked.
func (g *MockGateway) Calls(op string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.calls[op]
}

func (g *MockGateway) enter(ctx context.Context, op string) error {
	if g.latency > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
		case <-time.After(g.latency):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return err
	}
	return nil
}

func (g *MockGateway) OpenCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := g.enter(ctx, "OpenCharge"); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: unit_price must be positive", domain.ErrGatewayRejected)
	}

	ref := "pref-" + uuid.NewString()
	g.mu.Lock()
	g.preferences[ref] = req
	g.mu.Unlock()

	return &Charge{
		ReferenceID: ref,
		RedirectURL: fmt.Sprintf("%s/checkout?pref_id=%s", g.baseURL, ref),
	}, nil
}

func (g *MockGateway) TransactionStatus(ctx context.Context, paymentID string) (*Transaction, error) {
	if err := g.enter(ctx, "TransactionStatus"); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	txn, ok := g.transactions[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", domain.ErrGatewayRejected, paymentID)
	}
	return &txn, nil
}

func (g *MockGateway) SearchTransactions(ctx context.Context, intentID uuid.UUID) ([]Transaction, error) {
	if err := g.enter(ctx, "SearchTransactions"); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Transaction
	for _, txn := range g.transactions {
		if txn.IntentID == intentID.String() {
			out = append(out, txn)
		}
	}
	return out, nil
}

// Settle records a payment against an open preference and returns it, the way
// the processor does once the donor finishes checkout.
func (g *MockGateway) Settle(referenceID, paymentID string, status Status) (*Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.preferences[referenceID]
	if !ok {
		return nil, fmt.Errorf("%w: preference %s not found", domain.ErrGatewayRejected, referenceID)
	}
	txn := Transaction{
		PaymentID:   paymentID,
		ReferenceID: referenceID,
		IntentID:    req.IntentID.String(),
		Status:      status,
	}
	g.transactions[paymentID] = txn
	return &txn, nil
}

// Inject stores an arbitrary transaction, including ones for preferences this
// gateway never opened.
func (g *MockGateway) Inject(txn Transaction) {
	g.mu.Lock()
	g.transactions[txn.PaymentID] = txn
	g.mu.Unlock()
}
