package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
	"donation-gate/internal/infrastructure/payment"
	"donation-gate/internal/repo"
	"donation-gate/internal/service"
	"donation-gate/internal/token"
	"donation-gate/internal/worker"
)

const (
	donations  = 20
	duplicates = 5
)

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "donation-sim")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := repo.NewBoltIntentRepo(filepath.Join(dir, "intents.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	gateway := payment.NewMockGateway("https://mock-gateway.local", 20*time.Millisecond)
	intents := service.NewIntentService(store, gateway, token.NewIssuer(), service.IntentOptions{BaseURL: "http://localhost:3000"})
	access := service.NewAccessService(store, "https://seu-dominio.com/conteudo-secreto.html")

	fmt.Printf("--- STARTING SIMULATION (%d DONATIONS) ---\n", donations)
	var unnotified []*domain.Intent
	for i := 0; i < donations; i++ {
		amount := decimal.NewFromFloat(1 + rand.Float64()*199).Round(2)

		// 10% of checkouts hit a gateway outage.
		if rand.IntN(100) < 10 {
			gateway.FailNext(domain.ErrGatewayUnavailable)
		}

		fmt.Printf("[%d] Donating R$ %s ... ", i+1, amount.StringFixed(2))
		checkout, err := intents.CreateIntent(ctx, amount)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}
		fmt.Printf("checkout %s\n", checkout.RedirectURL)

		paymentID := fmt.Sprintf("PX%04d", i+1)
		chance := rand.IntN(100)
		ref := checkout.Intent.ExternalReferenceID
		switch {
		case chance < 60:
			err = settle(gateway, ref, paymentID, payment.StatusApproved)
		case chance < 80:
			err = settle(gateway, ref, paymentID, payment.StatusRejected)
		case chance < 90:
			// Paid, but the webhook is lost.
			if err := settle(gateway, ref, paymentID, payment.StatusApproved); err != nil {
				log.Printf("settle %s: %v", paymentID, err)
				continue
			}
			unnotified = append(unnotified, checkout.Intent)
			fmt.Println("    -> webhook lost")
			continue
		default:
			fmt.Println("    -> donor abandoned checkout")
			continue
		}
		if err != nil {
			log.Printf("settle %s: %v", paymentID, err)
			continue
		}

		// The gateway retries its callback; all copies race.
		var wg sync.WaitGroup
		results := make([]service.Outcome, duplicates)
		for d := 0; d < duplicates; d++ {
			wg.Add(1)
			go func(d int) {
				defer wg.Done()
				res, err := intents.Reconcile(ctx, service.Notification{PaymentID: paymentID})
				if err != nil {
					log.Printf("notification %s#%d: %v", paymentID, d, err)
					return
				}
				results[d] = res.Outcome
			}(d)
		}
		wg.Wait()

		fresh, err := store.FindByID(ctx, checkout.Intent.ID)
		if err != nil {
			log.Printf("reload intent %s: %v", checkout.Intent.ID, err)
			continue
		}
		fmt.Printf("    -> notifications %v, DB status: %s\n", results, fresh.Status)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("Sweeping %d intents whose webhook was lost...\n", len(unnotified))
	rw := worker.NewReconciliationWorker(store, intents, time.Second, 0, 100)
	sweep, err := rw.Process(ctx)
	if err != nil {
		log.Printf("sweep failed: %v", err)
	}
	fmt.Printf("Sweep checked %d, approved %d, failed %d\n", sweep.Checked, sweep.Approved, sweep.Failed)

	fmt.Println("---------------------------------------------------")
	all, err := store.List(ctx)
	if err != nil {
		log.Fatal(err)
	}
	granted, pending := 0, 0
	for _, i := range all {
		if !i.IsApproved() {
			pending++
			continue
		}
		if _, err := access.Authorize(ctx, i.AccessToken); err != nil {
			fmt.Printf("!! approved intent %s denied: %v\n", i.ID, err)
			continue
		}
		granted++
	}
	_, err = access.Authorize(ctx, "wrong-token")
	fmt.Printf("Intents: %d, access granted: %d, still pending: %d, wrong token unauthorized: %v\n",
		len(all), granted, pending, errors.Is(err, domain.ErrUnauthorized))
}

func settle(gateway *payment.MockGateway, referenceID, paymentID string, status payment.Status) error {
	_, err := gateway.Settle(referenceID, paymentID, status)
	return err
}
