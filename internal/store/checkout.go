package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/logger"
	"github.com/safar/electronics-store/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutState string

const (
	CheckoutEmpty      CheckoutState = "empty"
	CheckoutValidating CheckoutState = "validating"
	CheckoutPriced     CheckoutState = "priced"
	CheckoutCommitted  CheckoutState = "committed"
	CheckoutRejected   CheckoutState = "rejected"
)

type PlaceOrderRequest struct {
	Caller models.Caller
	// CustomerEmail is required for guests and ignored for customers.
	CustomerEmail   string
	DeliveryAddress string
}

// checkout is one attempt at turning a cart into an order. A retried
// transaction starts over with a fresh checkout.
type checkout struct {
	tx         *sql.Tx
	req        PlaceOrderRequest
	state      CheckoutState
	rejectedAt CheckoutState

	email   string
	address string
	cart    *models.Cart
	total   decimal.Decimal
	order   *models.Order
}

func (c *checkout) reject(err error) error {
	c.rejectedAt = c.state
	c.state = CheckoutRejected
	return err
}

// contact settles the email and delivery address recorded on the order.
func (c *checkout) contact(ctx context.Context) error {
	customerID, ok := c.req.Caller.Identity.CustomerID()
	if !ok {
		c.email = strings.TrimSpace(c.req.CustomerEmail)
		c.address = strings.TrimSpace(c.req.DeliveryAddress)
		return nil
	}

	customer, err := GetCustomer(ctx, c.tx, customerID)
	if err != nil {
		return c.reject(err)
	}

	c.email = customer.Email
	c.address = strings.TrimSpace(c.req.DeliveryAddress)
	if c.address == "" {
		c.address = strings.TrimSpace(customer.DeliveryAddress)
	}
	if c.address == "" {
		return c.reject(database.InvalidArgument("delivery_address", "No delivery address on file or in the request."))
	}
	return nil
}

func (c *checkout) load(ctx context.Context) error {
	c.state = CheckoutEmpty

	cart, err := lockCart(ctx, c.tx, c.req.Caller.Identity, false)
	if err != nil {
		if errors.Is(err, errNoCart) {
			return c.reject(database.ErrEmptyCart)
		}
		return c.reject(err)
	}

	cart.Lines, err = loadCartLines(ctx, c.tx, cart.ID)
	if err != nil {
		return c.reject(err)
	}
	if len(cart.Lines) == 0 {
		return c.reject(database.ErrEmptyCart)
	}

	c.cart = cart
	return nil
}

// validate checks every line against the stock visible to this transaction,
// not the stock seen when the line was added. The first shortfall aborts.
func (c *checkout) validate(ctx context.Context) error {
	c.state = CheckoutValidating

	for _, line := range c.cart.Lines {
		var name string
		var available int
		err := c.tx.QueryRowContext(ctx,
			`SELECT name, quantity_available FROM items WHERE id = $1`,
			line.ItemID).Scan(&name, &available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return c.reject(database.ErrItemNotFound)
			}
			return c.reject(fmt.Errorf("check stock for item %d: %w", line.ItemID, err))
		}

		if available < line.Quantity {
			return c.reject(&database.InsufficientStockError{
				ItemID:    line.ItemID,
				ItemName:  name,
				Available: available,
				Requested: line.Quantity,
			})
		}
	}

	return nil
}

// price totals the lines at their snapshot prices. Current catalogue prices
// are deliberately not consulted.
func (c *checkout) price() {
	c.state = CheckoutPriced
	c.total = cartTotal(c.cart.Lines)
}

func (c *checkout) commit(ctx context.Context) error {
	customerID, sessionToken := c.req.Caller.Identity.Columns()

	order := &models.Order{
		CustomerID:      customerID,
		CustomerEmail:   c.email,
		DeliveryAddress: c.address,
		TotalAmount:     c.total,
	}
	if sessionToken != nil {
		order.SessionToken = *sessionToken
	}

	// The order number is derived from the id drawn for this row.
	err := c.tx.QueryRowContext(ctx,
		`WITH next AS (SELECT nextval(pg_get_serial_sequence('orders', 'id')) AS id)
		 INSERT INTO orders (id, order_number, customer_id, customer_email, session_token, total_amount,
		                     delivery_address, status, created_at, updated_at, version)
		 VALUES ((SELECT id FROM next), 'ORD-' || LPAD((SELECT id FROM next)::text, 8, '0'),
		         $1, NULLIF($2, ''), $3, $4, $5, $6, NOW(), NOW(), 1)
		 RETURNING id, order_number, status, created_at, updated_at, version`,
		customerID, c.email, sessionToken, c.total, c.address, models.OrderStatusPending).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return c.reject(fmt.Errorf("create order: %w", err))
	}

	order.Lines = make([]models.OrderLine, 0, len(c.cart.Lines))
	for _, line := range c.cart.Lines {
		orderLine := models.OrderLine{
			OrderID:   order.ID,
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}

		err := c.tx.QueryRowContext(ctx,
			`INSERT INTO order_lines (order_id, item_id, quantity, unit_price, subtotal, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, created_at`,
			order.ID, line.ItemID, line.Quantity, line.UnitPrice, orderLine.Subtotal).Scan(
			&orderLine.ID, &orderLine.CreatedAt)
		if err != nil {
			return c.reject(fmt.Errorf("create order line: %w", err))
		}
		order.Lines = append(order.Lines, orderLine)
	}

	err = c.tx.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, amount_paid, status, created_at, updated_at)
		 VALUES ($1, 0, $2, NOW(), NOW())
		 RETURNING id`,
		order.ID, models.PaymentStatusPending).Scan(&order.PaymentID)
	if err != nil {
		return c.reject(fmt.Errorf("create payment: %w", err))
	}

	if _, err := c.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, c.cart.ID); err != nil {
		return c.reject(fmt.Errorf("clear cart lines: %w", err))
	}
	if _, err := c.tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, c.cart.ID); err != nil {
		return c.reject(fmt.Errorf("delete cart: %w", err))
	}

	c.order = order
	c.state = CheckoutCommitted
	return nil
}

func (c *checkout) run(ctx context.Context) error {
	if err := c.contact(ctx); err != nil {
		return err
	}
	if err := c.load(ctx); err != nil {
		return err
	}
	if err := c.validate(ctx); err != nil {
		return err
	}
	c.price()
	return c.commit(ctx)
}

// PlaceOrderFromCart converts the caller's cart into a pending order with a
// pending payment and deletes the cart. Either all of it happens or none.
// Stock is validated but not decremented.
func PlaceOrderFromCart(ctx context.Context, db *sql.DB, req PlaceOrderRequest) (*models.Order, error) {
	log := logger.FromContext(ctx)

	identity := req.Caller.Identity
	if !identity.Valid() {
		return nil, database.InvalidArgument("identity", "A customer id or session token is required.")
	}
	if identity.IsGuest() {
		if strings.TrimSpace(req.CustomerEmail) == "" {
			return nil, database.InvalidArgument("customer_email", "Email is required for guest checkout.")
		}
		if strings.TrimSpace(req.DeliveryAddress) == "" {
			return nil, database.InvalidArgument("delivery_address", "Delivery address is required for guest checkout.")
		}
	}

	var c *checkout
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		c = &checkout{tx: tx, req: req}
		return c.run(ctx)
	})
	if err != nil {
		var stage CheckoutState
		if c != nil {
			stage = c.rejectedAt
		}
		log.Info("checkout rejected",
			zap.Stringer("identity", identity),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return nil, err
	}

	log.Info("checkout committed",
		zap.Stringer("identity", identity),
		zap.Int64("order_id", c.order.ID),
		zap.String("total", c.order.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(c.order.Lines)))

	return c.order, nil
}
