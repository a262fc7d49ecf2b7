package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/shopspring/decimal"
)

var errNoCart = errors.New("no cart for identity")

const cartLineSelect = `
	SELECT l.id, l.cart_id, l.item_id, i.name, l.quantity, l.unit_price, l.created_at, l.updated_at, l.version
	FROM cart_lines l
	JOIN items i ON i.id = l.item_id`

func scanCartLine(row rowScanner, line *models.CartLine) error {
	return row.Scan(
		&line.ID,
		&line.CartID,
		&line.ItemID,
		&line.ItemName,
		&line.Quantity,
		&line.UnitPrice,
		&line.CreatedAt,
		&line.UpdatedAt,
		&line.Version,
	)
}

// cartPredicate matches the single cart owned by identity. An anonymous
// lookup never matches a customer's cart and vice versa.
func cartPredicate(identity models.Identity, alias string) (string, any, error) {
	if customerID, ok := identity.CustomerID(); ok {
		return alias + ".customer_id = $1", customerID, nil
	}
	if token, ok := identity.SessionToken(); ok {
		return alias + ".session_token = $1 AND " + alias + ".customer_id IS NULL", token, nil
	}
	return "", nil, database.InvalidArgument("identity", "A customer id or session token is required.")
}

// lockCart returns the identity's cart locked FOR UPDATE, creating it first
// when create is set. Every cart mutation goes through here, which
// serializes concurrent writers on the same cart.
//
// A checkout may delete the cart between the insert and the lock. The
// create path then inserts again once before reporting ErrConflict.
func lockCart(ctx context.Context, tx *sql.Tx, identity models.Identity, create bool) (*models.Cart, error) {
	predicate, arg, err := cartPredicate(identity, "c")
	if err != nil {
		return nil, err
	}

	attempts := 1
	if create {
		attempts = 2
	}

	for i := 0; i < attempts; i++ {
		if create {
			if err := insertCart(ctx, tx, identity); err != nil {
				return nil, err
			}
		}

		cart := &models.Cart{Identity: identity}
		err = tx.QueryRowContext(ctx,
			`SELECT c.id, c.created_at, c.updated_at FROM carts c WHERE `+predicate+` FOR UPDATE`,
			arg).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lock cart: %w", err)
		}
	}

	if create {
		return nil, fmt.Errorf("%w: cart was removed by a concurrent checkout", database.ErrConflict)
	}
	return nil, errNoCart
}

func insertCart(ctx context.Context, tx *sql.Tx, identity models.Identity) error {
	customerID, sessionToken := identity.Columns()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO carts (customer_id, session_token, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT DO NOTHING`,
		customerID, sessionToken)
	if err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

func loadCartLines(ctx context.Context, q database.Querier, cartID int64) ([]models.CartLine, error) {
	rows, err := q.QueryContext(ctx, cartLineSelect+` WHERE l.cart_id = $1 ORDER BY l.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		if err := scanCartLine(rows, &line); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func cartTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func lockCartLine(ctx context.Context, tx *sql.Tx, cartID, itemID int64) (*models.CartLine, error) {
	line := &models.CartLine{}
	err := scanCartLine(tx.QueryRowContext(ctx,
		cartLineSelect+` WHERE l.cart_id = $1 AND l.item_id = $2 FOR UPDATE OF l`,
		cartID, itemID), line)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("lock cart line: %w", err)
	}
	return line, nil
}

func setCartLineQuantity(ctx context.Context, tx *sql.Tx, line *models.CartLine, quantity int) error {
	err := tx.QueryRowContext(ctx,
		`UPDATE cart_lines
		 SET quantity = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3
		 RETURNING quantity, updated_at, version`,
		quantity, line.ID, line.Version).Scan(&line.Quantity, &line.UpdatedAt, &line.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrOptimisticLockFailed
		}
		return fmt.Errorf("update cart line: %w", err)
	}
	return nil
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// ResolveCart returns the identity's cart with its lines, creating an empty
// one on first use.
func ResolveCart(ctx context.Context, db *sql.DB, identity models.Identity) (*models.Cart, error) {
	var cart *models.Cart

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		cart, err = lockCart(ctx, tx, identity, true)
		if err != nil {
			return err
		}

		cart.Lines, err = loadCartLines(ctx, tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	cart.Total = cartTotal(cart.Lines)
	return cart, nil
}

// GetCart is the read-only variant of ResolveCart: an identity without a
// cart gets an empty, unsaved cart with ID 0.
func GetCart(ctx context.Context, db *sql.DB, identity models.Identity) (*models.Cart, error) {
	predicate, arg, err := cartPredicate(identity, "c")
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{Identity: identity, Lines: []models.CartLine{}, Total: decimal.Zero}
	err = db.QueryRowContext(ctx,
		`SELECT c.id, c.created_at, c.updated_at FROM carts c WHERE `+predicate, arg).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cart, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart.Lines, err = loadCartLines(ctx, db, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Total = cartTotal(cart.Lines)

	return cart, nil
}

// GetCartLine fetches a line by id, but only from the identity's own cart.
func GetCartLine(ctx context.Context, db *sql.DB, identity models.Identity, lineID int64) (*models.CartLine, error) {
	predicate, arg, err := cartPredicate(identity, "c")
	if err != nil {
		return nil, err
	}

	line := &models.CartLine{}
	err = scanCartLine(db.QueryRowContext(ctx,
		cartLineSelect+` JOIN carts c ON c.id = l.cart_id WHERE `+predicate+` AND l.id = $2`,
		arg, lineID), line)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}

	return line, nil
}

// AddItem puts quantity units of an item into the identity's cart. A repeat
// add grows the existing line and keeps its original unit price. Stock is
// checked, never reserved.
func AddItem(ctx context.Context, db *sql.DB, identity models.Identity, itemID int64, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, database.InvalidArgument("quantity", "Quantity must be a positive integer.")
	}

	var line *models.CartLine

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		item, err := GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.IsAvailable {
			return database.ErrItemNotFound
		}
		if item.QuantityAvailable < quantity {
			return &database.InsufficientStockError{
				ItemID: item.ID, ItemName: item.Name, Available: item.QuantityAvailable, Requested: quantity,
			}
		}

		cart, err := lockCart(ctx, tx, identity, true)
		if err != nil {
			return err
		}

		existing, err := lockCartLine(ctx, tx, cart.ID, item.ID)
		switch {
		case err == nil:
			combined := existing.Quantity + quantity
			if item.QuantityAvailable < combined {
				return &database.InsufficientStockError{
					ItemID: item.ID, ItemName: item.Name, Available: item.QuantityAvailable, Requested: combined,
				}
			}
			if err := setCartLineQuantity(ctx, tx, existing, combined); err != nil {
				return err
			}
			line = existing

		case errors.Is(err, database.ErrCartLineNotFound):
			line = &models.CartLine{CartID: cart.ID, ItemID: item.ID, ItemName: item.Name}
			err = tx.QueryRowContext(ctx,
				`INSERT INTO cart_lines (cart_id, item_id, quantity, unit_price, created_at, updated_at, version)
				 VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
				 RETURNING id, quantity, unit_price, created_at, updated_at, version`,
				cart.ID, item.ID, quantity, item.UnitPrice).Scan(
				&line.ID, &line.Quantity, &line.UnitPrice, &line.CreatedAt, &line.UpdatedAt, &line.Version)
			if err != nil {
				if database.IsUniqueViolation(err) {
					return database.ErrDuplicate
				}
				return fmt.Errorf("create cart line: %w", err)
			}

		default:
			return err
		}

		return touchCart(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line and reports deleted. Only the increase over the current quantity
// is checked against stock.
func UpdateQuantity(ctx context.Context, db *sql.DB, identity models.Identity, itemID int64, quantity int) (line *models.CartLine, deleted bool, err error) {
	if quantity <= 0 {
		if err := RemoveItem(ctx, db, identity, itemID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, identity, false)
		if err != nil {
			if errors.Is(err, errNoCart) {
				return database.ErrCartLineNotFound
			}
			return err
		}

		existing, err := lockCartLine(ctx, tx, cart.ID, itemID)
		if err != nil {
			return err
		}

		item, err := GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		delta := quantity - existing.Quantity
		if item.QuantityAvailable < delta {
			return &database.InsufficientStockError{
				ItemID: item.ID, ItemName: item.Name, Available: item.QuantityAvailable, Requested: delta,
			}
		}

		if err := setCartLineQuantity(ctx, tx, existing, quantity); err != nil {
			return err
		}
		line = existing

		return touchCart(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, false, err
	}

	return line, false, nil
}

// RemoveItem deletes the item's line from the identity's cart. Removing a
// line that does not exist is not an error.
func RemoveItem(ctx context.Context, db *sql.DB, identity models.Identity, itemID int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, identity, false)
		if err != nil {
			if errors.Is(err, errNoCart) {
				return nil
			}
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM cart_lines WHERE cart_id = $1 AND item_id = $2`, cart.ID, itemID)
		if err != nil {
			return fmt.Errorf("delete cart line: %w", err)
		}

		if n, err := result.RowsAffected(); err == nil && n > 0 {
			return touchCart(ctx, tx, cart.ID)
		}
		return nil
	})
}
