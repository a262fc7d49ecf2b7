package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
	"github.com/shopspring/decimal"
)

func TestDeleteReferencedItemIsBlocked(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-delete")

	sold := createItem(t, db, "ITM-A", 100, 5)
	unsold := createItem(t, db, "ITM-B", 100, 5)

	if _, err := store.AddItem(ctx, db, caller.Identity, sold.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	if _, err := store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller:          caller,
		CustomerEmail:   "guest@example.com",
		DeliveryAddress: "1 Main St",
	}); err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if err := store.DeleteItem(ctx, db, sold.ID); !errors.Is(err, database.ErrItemReferenced) {
		t.Errorf("Expected ErrItemReferenced, got %v", err)
	}
	if err := store.DeleteItem(ctx, db, unsold.ID); err != nil {
		t.Errorf("Delete unsold item: %v", err)
	}
	if err := store.DeleteItem(ctx, db, unsold.ID); !errors.Is(err, database.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestUpdateItemStaleVersion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	item := createItem(t, db, "ITM-C", 100, 5)

	price := decimal.NewFromInt(80)
	updated, err := store.UpdateItem(ctx, db, item.ID, store.ItemUpdate{UnitPrice: &price, Version: item.Version})
	if err != nil {
		t.Fatalf("Update item: %v", err)
	}
	if !updated.UnitPrice.Equal(price) {
		t.Errorf("Expected price 80, got %s", updated.UnitPrice)
	}

	_, err = store.UpdateItem(ctx, db, item.ID, store.ItemUpdate{UnitPrice: &price, Version: item.Version})
	if !errors.Is(err, database.ErrConflict) {
		t.Errorf("Expected ErrConflict for stale version, got %v", err)
	}
}

func TestFeaturedAndHighestSelling(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	featured, err := store.CreateItem(ctx, db, store.ItemInput{
		SKU: "ITM-F", Name: "Featured phone", UnitPrice: decimal.NewFromInt(500),
		QuantityAvailable: 10, IsAvailable: true, IsFeatured: true,
	})
	if err != nil {
		t.Fatalf("Create featured item: %v", err)
	}
	if _, err := store.CreateItem(ctx, db, store.ItemInput{
		SKU: "ITM-G", Name: "Hidden phone", UnitPrice: decimal.NewFromInt(500),
		QuantityAvailable: 10, IsAvailable: false, IsFeatured: true,
	}); err != nil {
		t.Fatalf("Create hidden item: %v", err)
	}

	items, err := store.ListFeaturedItems(ctx, db)
	if err != nil {
		t.Fatalf("List featured: %v", err)
	}
	if len(items) != 1 || items[0].ID != featured.ID {
		t.Errorf("Expected only the available featured item, got %+v", items)
	}

	caller := guestCaller("guest-best")
	if _, err := store.AddItem(ctx, db, caller.Identity, featured.ID, 3); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	if _, err := store.PlaceOrderFromCart(ctx, db, store.PlaceOrderRequest{
		Caller: caller, CustomerEmail: "guest@example.com", DeliveryAddress: "1 Main St",
	}); err != nil {
		t.Fatalf("Place order: %v", err)
	}

	best, err := store.ListHighestSelling(ctx, db, 10)
	if err != nil {
		t.Fatalf("List highest selling: %v", err)
	}
	if len(best) != 1 || best[0].ID != featured.ID || best[0].TotalSold != 3 {
		t.Errorf("Expected featured item with 3 sold, got %+v", best)
	}
}

func TestSalesMetricsCountSettledOrders(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	caller := guestCaller("guest-metrics")
	order := placeGuestOrder(t, ctx, db, caller, "ITM-H")

	summary, err := store.GetSalesSummary(ctx, db)
	if err != nil {
		t.Fatalf("Sales summary: %v", err)
	}
	if summary.PaidOrders != 0 {
		t.Errorf("Expected pending orders to be excluded, got %d", summary.PaidOrders)
	}

	if _, err := store.InitiatePayment(ctx, db, store.InitiatePaymentRequest{PaymentID: order.PaymentID, Caller: caller}); err != nil {
		t.Fatalf("Initiate payment: %v", err)
	}

	recorded, err := store.RecordSalesMetrics(ctx, db)
	if err != nil {
		t.Fatalf("Record metrics: %v", err)
	}
	if len(recorded) == 0 {
		t.Fatal("Expected metrics to be recorded")
	}

	sales, err := store.ListPerformanceMetrics(ctx, db, models.MetricTotalSales)
	if err != nil {
		t.Fatalf("List metrics: %v", err)
	}
	if len(sales) != 1 || !sales[0].Value.Equal(order.TotalAmount) {
		t.Errorf("Expected total sales %s, got %+v", order.TotalAmount, sales)
	}

	profit, err := store.ListPerformanceMetrics(ctx, db, models.MetricProfitability)
	if err != nil {
		t.Fatalf("List profitability: %v", err)
	}
	if len(profit) != 1 || profit[0].ItemID == nil || !profit[0].Value.Equal(order.TotalAmount) {
		t.Errorf("Expected one per-item profitability row, got %+v", profit)
	}
}
