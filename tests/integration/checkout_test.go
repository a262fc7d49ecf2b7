package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
	"github.com/shopspring/decimal"
)

func TestPlaceOrderFromCart_TotalsSnapshotPrices(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-total")

	itemA := createItem(t, db, "CHK-A", 100, 5)
	itemB := createItem(t, db, "CHK-B", 50, 1)

	if _, err := store.AddItem(ctx, db, caller.Identity, itemA.ID, 2); err != nil {
		t.Fatalf("Add item A: %v", err)
	}
	if _, err := store.AddItem(ctx, db, caller.Identity, itemB.ID, 1); err != nil {
		t.Fatalf("Add item B: %v", err)
	}

	newPrice := decimal.NewFromInt(999)
	if _, err := store.UpdateItem(ctx, db, itemA.ID, store.ItemUpdate{UnitPrice: &newPrice, Version: itemA.Version}); err != nil {
		t.Fatalf("Reprice item A: %v", err)
	}

	order, err := store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller:          caller,
		CustomerEmail:   "guest@example.com",
		DeliveryAddress: "1 Main St",
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected total 250, got %s", order.TotalAmount)
	}
	if len(order.Lines) != 2 {
		t.Errorf("Expected 2 order lines, got %d", len(order.Lines))
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected pending order, got %s", order.Status)
	}
	if order.PaymentID == 0 {
		t.Error("Expected a pending payment to be created")
	}

	cart, err := store.GetCart(ctx, db, caller.Identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Errorf("Expected empty cart after checkout, got %d lines", len(cart.Lines))
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM carts WHERE session_token = $1`, "guest-total"); n != 0 {
		t.Errorf("Expected cart row to be deleted, found %d", n)
	}

	_, err = store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller:          caller,
		CustomerEmail:   "guest@example.com",
		DeliveryAddress: "1 Main St",
	})
	if !errors.Is(err, database.ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart on second checkout, got %v", err)
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM orders`); n != 1 {
		t.Errorf("Expected exactly 1 order, got %d", n)
	}
}

func TestPlaceOrderFromCart_InsufficientStockLeavesCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-stock")

	item := createItem(t, db, "CHK-C", 40, 10)
	if _, err := store.AddItem(ctx, db, caller.Identity, item.ID, 10); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := store.AdjustStock(ctx, tx, item.ID, -7)
		return err
	})
	if err != nil {
		t.Fatalf("Adjust stock: %v", err)
	}

	_, err = store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller:          caller,
		CustomerEmail:   "guest@example.com",
		DeliveryAddress: "1 Main St",
	})

	var stockErr *database.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 3 || stockErr.Requested != 10 {
		t.Errorf("Expected available 3 requested 10, got %d/%d", stockErr.Available, stockErr.Requested)
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM orders`); n != 0 {
		t.Errorf("Expected no orders, got %d", n)
	}

	cart, err := store.GetCart(ctx, db, caller.Identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 10 {
		t.Errorf("Expected cart unchanged with 1 line of 10, got %+v", cart.Lines)
	}
}

func TestPlaceOrderFromCart_GuestNeedsEmail(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-noemail")

	item := createItem(t, db, "CHK-D", 10, 5)
	if _, err := store.AddItem(ctx, db, caller.Identity, item.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	_, err := store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{Caller: caller, DeliveryAddress: "1 Main St"})
	if !errors.Is(err, database.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestPlaceOrderFromCart_CustomerUsesAddressOnFile(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	customer, err := store.CreateCustomer(ctx, db, store.CustomerInput{
		Email:           "buyer@example.com",
		Username:        "buyer",
		DeliveryAddress: "42 Circuit Rd",
		UserType:        models.RoleCustomer,
	})
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}
	caller := models.Caller{Identity: models.CustomerIdentity(customer.ID), Role: models.RoleCustomer}

	item := createItem(t, db, "CHK-E", 75, 5)
	if _, err := store.AddItem(ctx, db, caller.Identity, item.ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	order, err := store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{Caller: caller})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if order.DeliveryAddress != "42 Circuit Rd" {
		t.Errorf("Expected address on file, got %q", order.DeliveryAddress)
	}
	if order.CustomerID == nil || *order.CustomerID != customer.ID {
		t.Errorf("Expected order owned by customer %d", customer.ID)
	}

	other := models.Caller{Identity: models.CustomerIdentity(customer.ID + 1000), Role: models.RoleCustomer}
	if _, err := store.GetOrderForCaller(ctx, db, other, order.ID); !errors.Is(err, database.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for another customer, got %v", err)
	}
}

func TestPlaceOrderFromCart_FailedPaymentInsertKeepsCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-rollback")

	item := createItem(t, db, "CHK-F", 60, 5)
	if _, err := store.AddItem(ctx, db, caller.Identity, item.ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	_, err := db.ExecContext(ctx, `
		CREATE FUNCTION reject_payment() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'payments unavailable';
		END;
		$$ LANGUAGE plpgsql;
		CREATE TRIGGER reject_payment BEFORE INSERT ON payments
			FOR EACH ROW EXECUTE FUNCTION reject_payment();`)
	if err != nil {
		t.Fatalf("Install payment trigger: %v", err)
	}

	_, err = store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller:          caller,
		CustomerEmail:   "guest@example.com",
		DeliveryAddress: "1 Main St",
	})
	if err == nil {
		t.Fatal("Expected checkout to fail when the payment insert fails")
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM orders`); n != 0 {
		t.Errorf("Expected no orders, got %d", n)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM order_lines`); n != 0 {
		t.Errorf("Expected no order lines, got %d", n)
	}

	cart, err := store.GetCart(ctx, db, caller.Identity)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Errorf("Expected cart to keep 1 line of 2, got %+v", cart.Lines)
	}
}

func TestPlaceOrderFromCart_OrderNumbersFollowIDs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := placeGuestOrder(t, ctx, db, guestCaller("guest-num-a"), "CHK-G")
	second := placeGuestOrder(t, ctx, db, guestCaller("guest-num-b"), "CHK-H")

	for _, order := range []*models.Order{first, second} {
		want := fmt.Sprintf("ORD-%08d", order.ID)
		if order.OrderNumber != want {
			t.Errorf("Expected order number %s, got %s", want, order.OrderNumber)
		}
	}
}
