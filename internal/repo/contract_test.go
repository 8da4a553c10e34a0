package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
)

func newPending(ref string, createdAt time.Time) *domain.Intent {
	return &domain.Intent{
		ID:                  uuid.New(),
		ExternalReferenceID: ref,
		Amount:              decimal.RequireFromString("50.00"),
		Currency:            "BRL",
		Status:              domain.IntentPending,
		CreatedAt:           createdAt.UTC().Truncate(time.Microsecond),
	}
}

// runIntentRepoContract exercises behaviour every IntentRepo implementation shares.
func runIntentRepoContract(t *testing.T, newRepo func(t *testing.T) IntentRepo) {
	t.Run("create and find", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		in := newPending("pref-create", time.Now())

		if err := r.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}

		byRef, err := r.FindByReference(ctx, "pref-create")
		if err != nil {
			t.Fatalf("find by reference: %v", err)
		}
		byID, err := r.FindByID(ctx, in.ID)
		if err != nil {
			t.Fatalf("find by id: %v", err)
		}
		for _, got := range []*domain.Intent{byRef, byID} {
			if got.ID != in.ID || got.Status != domain.IntentPending || !got.Amount.Equal(in.Amount) {
				t.Fatalf("unexpected intent %+v", got)
			}
			if got.AccessToken != "" || got.ExternalPaymentID != "" || got.ApprovedAt != nil {
				t.Fatalf("pending intent carries approval fields: %+v", got)
			}
			if !got.CreatedAt.Equal(in.CreatedAt) {
				t.Fatalf("expected created_at %v, got %v", in.CreatedAt, got.CreatedAt)
			}
		}
	})

	t.Run("duplicate reference is an integrity error", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		if err := r.Create(ctx, newPending("pref-dup", time.Now())); err != nil {
			t.Fatalf("create: %v", err)
		}
		err := r.Create(ctx, newPending("pref-dup", time.Now()))
		if !errors.Is(err, domain.ErrIntegrity) {
			t.Fatalf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("missing rows", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		if _, err := r.FindByReference(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := r.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := r.FindApprovedByToken(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("malformed tokens are not found", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		for _, tok := range []string{"\x00", "\xff\xfe", "tok\x00en", "\xc3("} {
			if _, err := r.FindApprovedByToken(ctx, tok); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("token %q: expected ErrNotFound, got %v", tok, err)
			}
		}
	})

	t.Run("approve is conditional on pending", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		in := newPending("pref-approve", time.Now())
		if err := r.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}

		first := domain.Approval{PaymentID: "PX123", Token: "token-first-0123456789", ApprovedAt: time.Now().UTC().Truncate(time.Microsecond)}
		applied, err := r.Approve(ctx, "pref-approve", first)
		if err != nil || !applied {
			t.Fatalf("expected first approval to apply, got applied=%v err=%v", applied, err)
		}

		second := domain.Approval{PaymentID: "PX999", Token: "token-second-0123456789", ApprovedAt: time.Now()}
		applied, err = r.Approve(ctx, "pref-approve", second)
		if err != nil {
			t.Fatalf("second approval: %v", err)
		}
		if applied {
			t.Fatal("expected second approval to be a no-op")
		}

		got, err := r.FindByReference(ctx, "pref-approve")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != domain.IntentApproved || got.ExternalPaymentID != "PX123" || got.AccessToken != first.Token {
			t.Fatalf("approval overwritten: %+v", got)
		}
		if got.ApprovedAt == nil || !got.ApprovedAt.Equal(first.ApprovedAt) {
			t.Fatalf("expected approved_at %v, got %v", first.ApprovedAt, got.ApprovedAt)
		}

		byToken, err := r.FindApprovedByToken(ctx, first.Token)
		if err != nil || byToken.ID != in.ID {
			t.Fatalf("expected token lookup to find intent, got %v %v", byToken, err)
		}
		if _, err := r.FindApprovedByToken(ctx, second.Token); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("losing token must not resolve, got %v", err)
		}
	})

	t.Run("approve unknown reference", func(t *testing.T) {
		r := newRepo(t)
		applied, err := r.Approve(context.Background(), "ghost", domain.Approval{PaymentID: "p", Token: "t", ApprovedAt: time.Now()})
		if applied {
			t.Fatal("nothing to approve")
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("token collision is an integrity error", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		for _, ref := range []string{"pref-a", "pref-b"} {
			if err := r.Create(ctx, newPending(ref, time.Now())); err != nil {
				t.Fatalf("create %s: %v", ref, err)
			}
		}
		approval := domain.Approval{PaymentID: "p1", Token: "same-token-0123456789", ApprovedAt: time.Now()}
		if _, err := r.Approve(ctx, "pref-a", approval); err != nil {
			t.Fatalf("approve a: %v", err)
		}
		approval.PaymentID = "p2"
		_, err := r.Approve(ctx, "pref-b", approval)
		if !errors.Is(err, domain.ErrIntegrity) {
			t.Fatalf("expected ErrIntegrity, got %v", err)
		}

		b, err := r.FindByReference(ctx, "pref-b")
		if err != nil {
			t.Fatalf("find b: %v", err)
		}
		if b.Status != domain.IntentPending || b.AccessToken != "" {
			t.Fatalf("collision must leave intent pending, got %+v", b)
		}
	})

	t.Run("concurrent approvals have one winner", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		if err := r.Create(ctx, newPending("pref-race", time.Now())); err != nil {
			t.Fatalf("create: %v", err)
		}

		const n = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				applied, err := r.Approve(ctx, "pref-race", domain.Approval{
					PaymentID:  "PX",
					Token:      fmt.Sprintf("race-token-%02d-0123456789", i),
					ApprovedAt: time.Now(),
				})
				if err != nil {
					t.Errorf("approve: %v", err)
					return
				}
				if applied {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("list newest first and pending sweep", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)
		old := newPending("pref-old", base)
		mid := newPending("pref-mid", base.Add(10*time.Minute))
		recent := newPending("pref-new", base.Add(55*time.Minute))
		for _, i := range []*domain.Intent{mid, recent, old} {
			if err := r.Create(ctx, i); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		if _, err := r.Approve(ctx, "pref-mid", domain.Approval{PaymentID: "p", Token: "mid-token-0123456789", ApprovedAt: time.Now()}); err != nil {
			t.Fatalf("approve: %v", err)
		}

		all, err := r.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 3 || all[0].ID != recent.ID || all[1].ID != mid.ID || all[2].ID != old.ID {
			t.Fatalf("expected newest first, got %+v", all)
		}

		stuck, err := r.FindPendingBefore(ctx, base.Add(30*time.Minute), 10)
		if err != nil {
			t.Fatalf("pending before: %v", err)
		}
		if len(stuck) != 1 || stuck[0].ID != old.ID {
			t.Fatalf("expected only the old pending intent, got %+v", stuck)
		}
	})
}
