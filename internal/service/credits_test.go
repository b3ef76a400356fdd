package service

import (
	"context"
	"errors"
	"testing"
)

func TestPurchaseLifecycle(t *testing.T) {
	store := newMemStore()
	store.addUser(10, 0)
	credits := NewCreditService(store)
	ctx := context.Background()

	p, err := credits.CreatePurchase(ctx, 10, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != "PENDING" || p.Reference == "" {
		t.Fatalf("purchase = %+v, want PENDING with reference", p)
	}
	if got := store.balance(10); got != 0 {
		t.Fatalf("balance before confirmation = %d, want 0", got)
	}

	confirmed, err := credits.ConfirmPurchase(ctx, p.Reference)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != "PAID" || confirmed.PaidAt == nil {
		t.Fatalf("confirmed = %+v, want PAID with timestamp", confirmed)
	}
	if got := store.balance(10); got != 5 {
		t.Fatalf("balance = %d, want 5", got)
	}
	if got := store.ledgerSum(10); got != 5 {
		t.Fatalf("ledger sum = %d, want 5", got)
	}
}

func TestConfirmPurchaseIdempotent(t *testing.T) {
	store := newMemStore()
	store.addUser(10, 0)
	credits := NewCreditService(store)
	ctx := context.Background()

	p, err := credits.CreatePurchase(ctx, 10, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := credits.ConfirmPurchase(ctx, p.Reference); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
	}
	if got := store.balance(10); got != 5 {
		t.Fatalf("balance = %d, want 5 (granted once)", got)
	}
}

func TestConfirmPurchaseUnknownReference(t *testing.T) {
	store := newMemStore()
	credits := NewCreditService(store)

	_, err := credits.ConfirmPurchase(context.Background(), "missing")
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("err = %v, want ErrPurchaseNotFound", err)
	}
}

func TestAdminAdjustRejectsOverdraw(t *testing.T) {
	store := newMemStore()
	store.addUser(10, 2)
	credits := NewCreditService(store)
	ctx := context.Background()

	if err := credits.AdminAdjust(ctx, 10, -3, "correction"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if got := store.balance(10); got != 2 {
		t.Fatalf("balance = %d, want 2 (unchanged)", got)
	}

	if err := credits.AdminAdjust(ctx, 10, -2, "correction"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := credits.AdminAdjust(ctx, 10, 4, "goodwill"); err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	if got := store.balance(10); got != 4 {
		t.Fatalf("balance = %d, want 4", got)
	}
	if got := store.ledgerSum(10); got != 2 {
		t.Fatalf("ledger sum = %d, want 2", got)
	}
}
