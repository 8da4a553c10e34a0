package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"donation-gate/internal/domain"
	"donation-gate/internal/repo"
	"donation-gate/internal/service"
)

// ReconciliationWorker catches approvals whose webhook never arrived by asking
// the gateway about intents that have been pending for a while.
type ReconciliationWorker struct {
	intentRepo    repo.IntentRepo
	intentService service.IntentService
	interval      time.Duration
	olderThan     time.Duration
	batch         int
	now           func() time.Time
}

func NewReconciliationWorker(
	intentRepo repo.IntentRepo,
	intentService service.IntentService,
	interval time.Duration,
	olderThan time.Duration,
	batch int,
) *ReconciliationWorker {
	if batch <= 0 {
		batch = 50
	}
	return &ReconciliationWorker{
		intentRepo:    intentRepo,
		intentService: intentService,
		interval:      interval,
		olderThan:     olderThan,
		batch:         batch,
		now:           time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	log.Println("Reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Process(ctx); err != nil {
				log.Printf("Reconciliation failed: %v", err)
			}
		}
	}
}

// Sweep counts what a single pass did.
type Sweep struct {
	Checked  int
	Approved int
	Failed   int
}

// Process runs one pass over stuck intents. Per-intent gateway failures are
// logged and left for the next pass; integrity errors abort the pass.
func (rw *ReconciliationWorker) Process(ctx context.Context) (Sweep, error) {
	var sweep Sweep

	stuck, err := rw.intentRepo.FindPendingBefore(ctx, rw.now().Add(-rw.olderThan), rw.batch)
	if err != nil {
		return sweep, err
	}
	if len(stuck) == 0 {
		return sweep, nil
	}

	log.Printf("Found %d stuck intents. Checking gateway...", len(stuck))

	for i := range stuck {
		intent := stuck[i]
		sweep.Checked++

		res, err := rw.intentService.ReconcileIntent(ctx, &intent)
		if errors.Is(err, domain.ErrIntegrity) {
			return sweep, err
		}
		if err != nil {
			sweep.Failed++
			log.Printf("Failed to reconcile intent %s: %v", intent.ID, err)
			continue
		}
		if res.Outcome == service.OutcomeApproved {
			sweep.Approved++
			log.Printf("Found unnotified payment for intent %s -> approved", intent.ID)
		}
	}
	return sweep, nil
}
