package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairstake/internal/domain"
)

func newSession(id string, owner int64) *domain.GameSession {
	now := time.Now().UTC()
	return &domain.GameSession{
		ID:          id,
		OwnerID:     owner,
		StakeCents:  1000,
		Layout:      []int{1, 2, 1, 2},
		MovesBudget: 22,
		TimeBudget:  120 * time.Second,
		Status:      domain.StatusActive,
		RevealA:     domain.NoReveal,
		RevealB:     domain.NoReveal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSessionCreateEnforcesOneActive(t *testing.T) {
	db := New()
	ctx := context.Background()

	if err := db.Create(ctx, newSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Create(ctx, newSession("s2", 1)); !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("second active Create error = %v, want ErrActiveSessionExists", err)
	}
	// A different owner is unaffected.
	if err := db.Create(ctx, newSession("s3", 2)); err != nil {
		t.Fatalf("Create for other owner: %v", err)
	}
}

func TestSessionUpdateVersionGuard(t *testing.T) {
	db := New()
	ctx := context.Background()

	if err := db.Create(ctx, newSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := db.Get(ctx, "s1")
	if err != nil || first == nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := db.Get(ctx, "s1")
	if err != nil || second == nil {
		t.Fatalf("Get: %v", err)
	}

	first.MovesUsed = 1
	if err := db.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The stale copy loses the race.
	second.MovesUsed = 2
	if err := db.Update(ctx, second); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale Update error = %v, want ErrVersionConflict", err)
	}

	cur, err := db.Get(ctx, "s1")
	if err != nil || cur == nil {
		t.Fatalf("Get: %v", err)
	}
	if cur.MovesUsed != 1 {
		t.Fatalf("MovesUsed = %d, want the first writer's 1", cur.MovesUsed)
	}
}

func TestSessionGetReturnsCopy(t *testing.T) {
	db := New()
	ctx := context.Background()

	if err := db.Create(ctx, newSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := db.Get(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v", err)
	}
	got.Layout[0] = 99
	got.MovesUsed = 50

	fresh, err := db.Get(ctx, "s1")
	if err != nil || fresh == nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Layout[0] == 99 || fresh.MovesUsed == 50 {
		t.Fatal("mutating a returned session leaked into the store")
	}
}

func TestActiveByOwner(t *testing.T) {
	db := New()
	ctx := context.Background()

	if s, err := db.ActiveByOwner(ctx, 1); err != nil || s != nil {
		t.Fatalf("ActiveByOwner on empty store = (%v, %v), want (nil, nil)", s, err)
	}

	if err := db.Create(ctx, newSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s, err := db.ActiveByOwner(ctx, 1)
	if err != nil || s == nil || s.ID != "s1" {
		t.Fatalf("ActiveByOwner = (%v, %v), want s1", s, err)
	}

	s.Status = domain.StatusLost
	if err := db.Update(ctx, s); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s, err := db.ActiveByOwner(ctx, 1); err != nil || s != nil {
		t.Fatalf("ActiveByOwner after loss = (%v, %v), want (nil, nil)", s, err)
	}
}

func TestListExpiredActive(t *testing.T) {
	db := New()
	ctx := context.Background()

	old := newSession("old", 1)
	old.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
	if err := db.Create(ctx, old); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Create(ctx, newSession("fresh", 2)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	expired, err := db.ListExpiredActive(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("ListExpiredActive: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Fatalf("expired = %v, want just the old session", expired)
	}
}

func TestWalletApply(t *testing.T) {
	db := New()
	ctx := context.Background()
	db.SetBalance(1, 5000)

	balance, err := db.Apply(ctx, domain.Transaction{
		SessionID: "s1", OwnerID: 1, Kind: domain.TxStake, AmountCents: -1000,
	})
	if err != nil {
		t.Fatalf("Apply stake: %v", err)
	}
	if balance != 4000 {
		t.Fatalf("balance = %d, want 4000", balance)
	}

	// Same session and kind again is a duplicate, and the balance holds.
	_, err = db.Apply(ctx, domain.Transaction{
		SessionID: "s1", OwnerID: 1, Kind: domain.TxStake, AmountCents: -1000,
	})
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("duplicate Apply error = %v, want ErrDuplicateTransaction", err)
	}
	if balance, _ := db.Balance(ctx, 1); balance != 4000 {
		t.Fatalf("balance after duplicate = %d, want 4000", balance)
	}

	// The payout for the same session is a different kind and goes through.
	balance, err = db.Apply(ctx, domain.Transaction{
		SessionID: "s1", OwnerID: 1, Kind: domain.TxPayout, AmountCents: 2500,
	})
	if err != nil {
		t.Fatalf("Apply payout: %v", err)
	}
	if balance != 6500 {
		t.Fatalf("balance = %d, want 6500", balance)
	}
}

func TestWalletApplyRejectsOverdraft(t *testing.T) {
	db := New()
	ctx := context.Background()
	db.SetBalance(1, 500)

	_, err := db.Apply(ctx, domain.Transaction{
		SessionID: "s1", OwnerID: 1, Kind: domain.TxStake, AmountCents: -1000,
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("overdraft Apply error = %v, want ErrInsufficientBalance", err)
	}
	if balance, _ := db.Balance(ctx, 1); balance != 500 {
		t.Fatalf("balance after rejected debit = %d, want 500", balance)
	}
	// The rejected transaction leaves no ledger row behind.
	tx, err := db.FindTransaction(ctx, "s1", domain.TxStake)
	if err != nil || tx != nil {
		t.Fatalf("FindTransaction after rejection = (%v, %v), want (nil, nil)", tx, err)
	}
}

func TestFindTransaction(t *testing.T) {
	db := New()
	ctx := context.Background()
	db.SetBalance(1, 5000)

	if _, err := db.Apply(ctx, domain.Transaction{
		SessionID: "s1", OwnerID: 1, Kind: domain.TxPayout, AmountCents: 2500,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	tx, err := db.FindTransaction(ctx, "s1", domain.TxPayout)
	if err != nil || tx == nil {
		t.Fatalf("FindTransaction = (%v, %v)", tx, err)
	}
	if tx.AmountCents != 2500 {
		t.Fatalf("AmountCents = %d, want 2500", tx.AmountCents)
	}

	missing, err := db.FindTransaction(ctx, "s2", domain.TxPayout)
	if err != nil || missing != nil {
		t.Fatalf("FindTransaction for unknown session = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestMoveAppendAndList(t *testing.T) {
	db := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.Append(ctx, domain.Move{
			SessionID: "s1", Position: i, Source: domain.MoveSourceFlip,
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := db.Append(ctx, domain.Move{
		SessionID: "other", Position: 0, Source: domain.MoveSourceFlip,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	moves, err := db.ListBySession(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("moves = %d, want 3", len(moves))
	}
	for i, m := range moves {
		if m.Position != i {
			t.Fatalf("moves out of order: %v", moves)
		}
	}

	limited, err := db.ListBySession(ctx, "s1", 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("ListBySession limit 2 = (%d, %v)", len(limited), err)
	}
}

func TestUserRepo(t *testing.T) {
	db := New()
	repo := db.NewUserRepo()
	ctx := context.Background()

	u, err := repo.Create(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(ctx, "alice", "hash"); err == nil {
		t.Fatal("Create accepted a duplicate username")
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil || byName == nil || byName.ID != u.ID {
		t.Fatalf("GetByUsername = (%v, %v)", byName, err)
	}
	byID, err := repo.GetByID(ctx, u.ID)
	if err != nil || byID == nil || byID.Username != "alice" {
		t.Fatalf("GetByID = (%v, %v)", byID, err)
	}
	missing, err := repo.GetByUsername(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("GetByUsername for unknown user = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestAuthRepoSupersede(t *testing.T) {
	db := New()
	repo := db.NewAuthRepo()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if err := repo.Create(ctx, 1, "t1", "ua", expires); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, 1, "t2", "ua", expires); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, 2, "t3", "ua", expires); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.DeleteForUser(ctx, 1, "t2"); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}

	if s, _ := repo.GetByToken(ctx, "t1"); s != nil {
		t.Fatal("superseded credential survived")
	}
	if s, _ := repo.GetByToken(ctx, "t2"); s == nil {
		t.Fatal("kept credential was deleted")
	}
	if s, _ := repo.GetByToken(ctx, "t3"); s == nil {
		t.Fatal("other user's credential was deleted")
	}
}

func TestAuthRepoExpiry(t *testing.T) {
	db := New()
	repo := db.NewAuthRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, 1, "stale", "ua", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s, err := repo.GetByToken(ctx, "stale"); err != nil || s != nil {
		t.Fatalf("GetByToken for expired credential = (%v, %v), want (nil, nil)", s, err)
	}
}
