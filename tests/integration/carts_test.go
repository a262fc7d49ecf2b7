package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/store"
)

func TestAddThenZeroQuantityRemovesLine(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	identity := guestCaller("guest-zero").Identity

	kept := createItem(t, db, "CART-A", 30, 10)
	removed := createItem(t, db, "CART-B", 15, 10)

	if _, err := store.AddItem(ctx, db, identity, kept.ID, 1); err != nil {
		t.Fatalf("Add kept item: %v", err)
	}

	before, err := store.GetCart(ctx, db, identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}

	if _, err := store.AddItem(ctx, db, identity, removed.ID, 3); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	_, deleted, err := store.UpdateQuantity(ctx, db, identity, removed.ID, 0)
	if err != nil {
		t.Fatalf("Update quantity: %v", err)
	}
	if !deleted {
		t.Error("Expected the line to be reported deleted")
	}

	after, err := store.GetCart(ctx, db, identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(after.Lines) != len(before.Lines) {
		t.Errorf("Expected %d lines, got %d", len(before.Lines), len(after.Lines))
	}

	if err := store.RemoveItem(ctx, db, identity, removed.ID); err != nil {
		t.Errorf("Expected removing an absent line to succeed, got %v", err)
	}
}

func TestRepeatAddGrowsLineAtSnapshotPrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	identity := guestCaller("guest-repeat").Identity
	item := createItem(t, db, "CART-C", 90, 10)

	first, err := store.AddItem(ctx, db, identity, item.ID, 2)
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	line, err := store.AddItem(ctx, db, identity, item.ID, 3)
	if err != nil {
		t.Fatalf("Add item again: %v", err)
	}

	if line.ID != first.ID {
		t.Errorf("Expected the same line, got %d and %d", first.ID, line.ID)
	}
	if line.Quantity != 5 {
		t.Errorf("Expected quantity 5, got %d", line.Quantity)
	}

	_, err = store.AddItem(ctx, db, identity, item.ID, 6)
	var stockErr *database.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Requested != 11 {
		t.Errorf("Expected InsufficientStockError for 11 units, got %v", err)
	}
}

func TestConcurrentAddsSerialize(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	identity := guestCaller("guest-concurrent").Identity
	item := createItem(t, db, "CART-D", 10, 50)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AddItem(ctx, db, identity, item.ID, 1)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	cart, err := store.GetCart(ctx, db, identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(cart.Lines))
	}
	if cart.Lines[0].Quantity != concurrency {
		t.Errorf("Expected quantity %d, got %d", concurrency, cart.Lines[0].Quantity)
	}
}

func TestCartLineIsScopedToIdentity(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	item := createItem(t, db, "CART-E", 10, 5)

	line, err := store.AddItem(ctx, db, guestCaller("guest-a").Identity, item.ID, 1)
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	_, err = store.GetCartLine(ctx, db, guestCaller("guest-b").Identity, line.ID)
	if !errors.Is(err, database.ErrCartLineNotFound) {
		t.Errorf("Expected ErrCartLineNotFound for another guest, got %v", err)
	}
}
