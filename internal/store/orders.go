package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
)

const orderSelect = `
	SELECT o.id, o.order_number, o.customer_id, COALESCE(o.customer_email, ''), COALESCE(o.session_token, ''),
	       o.status, o.total_amount, o.delivery_address, COALESCE(p.id, 0),
	       o.created_at, o.updated_at, o.version
	FROM orders o
	LEFT JOIN payments p ON p.order_id = o.id`

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.CustomerEmail,
		&order.SessionToken,
		&order.Status,
		&order.TotalAmount,
		&order.DeliveryAddress,
		&order.PaymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

// orderTransitions lists the status changes an administrator may make.
// pending -> paid belongs to the payment simulator.
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusCancelled},
	models.OrderStatusPaid:       {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

func canTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func loadOrderLines(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.order_id, l.item_id, i.name, l.quantity, l.unit_price, l.subtotal, l.created_at
		 FROM order_lines l
		 JOIN items i ON i.id = l.item_id
		 WHERE l.order_id = $1
		 ORDER BY l.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ItemID,
			&line.ItemName,
			&line.Quantity,
			&line.UnitPrice,
			&line.Subtotal,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(q.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	order.Lines, err = loadOrderLines(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrderForCaller(ctx context.Context, db *sql.DB, caller models.Caller, id int64) (*models.Order, error) {
	order, err := GetOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}

	if !CanAccess(caller, order.Owner()) {
		return nil, database.ErrForbidden
	}

	return order, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(tx.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	return order, nil
}

// ListOrders pages through the orders visible to caller, newest first.
func ListOrders(ctx context.Context, db *sql.DB, caller models.Caller, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	filter, args := ownerFilter(caller, "o", 4)

	query := orderSelect + `
		WHERE (o.created_at, o.id) < ($1, $2)
		  AND ` + filter + `
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $3`

	args = append([]any{cursorData.CreatedAt, cursorData.ID, limit + 1}, args...)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateOrderStatus moves an order along the fulfilment path. The update is
// a compare-and-swap on the status read, so a concurrent change wins and
// this one reports ErrConflict.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, status string) (*models.Order, error) {
	order, err := GetOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(order.Status, status) {
		return nil, database.InvalidArgument("status",
			fmt.Sprintf("Cannot move an order from %s to %s.", order.Status, status))
	}

	err = db.QueryRowContext(ctx,
		`UPDATE orders
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING status, updated_at, version`,
		status, id, order.Status).Scan(&order.Status, &order.UpdatedAt, &order.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return order, nil
}
