package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	SKU               string
	Name              string
	Description       string
	CategoryID        *int64
	UnitPrice         decimal.Decimal
	QuantityAvailable int
	IsAvailable       bool
	IsFeatured        bool
	ImageURL          string
}

// ItemUpdate changes only the non-nil fields. Version must match the row.
type ItemUpdate struct {
	Name        *string
	Description *string
	CategoryID  *int64
	UnitPrice   *decimal.Decimal
	IsAvailable *bool
	IsFeatured  *bool
	ImageURL    *string
	Version     int
}

type ItemFilter struct {
	CategoryID    *int64
	AvailableOnly bool
}

const itemSelect = `
	SELECT i.id, i.sku, i.name, i.description, i.category_id, COALESCE(c.name, ''),
	       i.unit_price, i.quantity_available, i.is_available, i.is_featured, i.image_url,
	       i.created_at, i.updated_at, i.version
	FROM items i
	LEFT JOIN item_categories c ON c.id = i.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, item *models.Item) error {
	return row.Scan(
		&item.ID,
		&item.SKU,
		&item.Name,
		&item.Description,
		&item.CategoryID,
		&item.CategoryName,
		&item.UnitPrice,
		&item.QuantityAvailable,
		&item.IsAvailable,
		&item.IsFeatured,
		&item.ImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.Version,
	)
}

func CreateCategory(ctx context.Context, db *sql.DB, name, description string) (*models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, database.InvalidArgument("name", "This field is required.")
	}

	category := &models.Category{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO item_categories (name, description, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING id, name, description, created_at`,
		name, description).Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM item_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func validateItemInput(in ItemInput) error {
	if strings.TrimSpace(in.SKU) == "" {
		return database.InvalidArgument("sku", "This field is required.")
	}
	if strings.TrimSpace(in.Name) == "" {
		return database.InvalidArgument("name", "This field is required.")
	}
	if in.UnitPrice.IsNegative() {
		return database.InvalidArgument("unit_price", "Price cannot be negative.")
	}
	if in.QuantityAvailable < 0 {
		return database.InvalidArgument("quantity_available", "Stock cannot be negative.")
	}
	return nil
}

func CreateItem(ctx context.Context, db *sql.DB, in ItemInput) (*models.Item, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO items (sku, name, description, category_id, unit_price, quantity_available,
		                    is_available, is_featured, image_url, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
		 RETURNING id`,
		in.SKU, in.Name, in.Description, in.CategoryID, in.UnitPrice.Round(2), in.QuantityAvailable,
		in.IsAvailable, in.IsFeatured, in.ImageURL).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem reads the current catalogue row. It takes no lock.
func GetItem(ctx context.Context, q database.Querier, id int64) (*models.Item, error) {
	item := &models.Item{}

	err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = $1`, id), item)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

func queryItems(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ListItems(ctx context.Context, db *sql.DB, filter ItemFilter, page, pageSize int) (*OffsetPage, error) {
	var conditions []string
	var args []any

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("i.category_id = $%d", len(args)))
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "i.is_available")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items i`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	offset := (page - 1) * pageSize
	query := itemSelect + where +
		fmt.Sprintf(" ORDER BY i.created_at DESC, i.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	items, err := queryItems(ctx, db, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(items, total, page, pageSize), nil
}

func ListFeaturedItems(ctx context.Context, db *sql.DB) ([]models.Item, error) {
	return queryItems(ctx, db, itemSelect+` WHERE i.is_featured AND i.is_available ORDER BY i.name`)
}

// ListHighestSelling ranks items by the total quantity across all order
// lines. Items that were never ordered are left out.
func ListHighestSelling(ctx context.Context, db *sql.DB, limit int) ([]models.SellingItem, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.QueryContext(ctx,
		`SELECT i.id, i.sku, i.name, i.description, i.category_id, COALESCE(c.name, ''),
		        i.unit_price, i.quantity_available, i.is_available, i.is_featured, i.image_url,
		        i.created_at, i.updated_at, i.version, s.total_sold
		 FROM (SELECT item_id, SUM(quantity) AS total_sold FROM order_lines GROUP BY item_id) s
		 JOIN items i ON i.id = s.item_id
		 LEFT JOIN item_categories c ON c.id = i.category_id
		 ORDER BY s.total_sold DESC, i.id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list highest selling: %w", err)
	}
	defer rows.Close()

	result := []models.SellingItem{}
	for rows.Next() {
		var s models.SellingItem
		err := rows.Scan(
			&s.ID, &s.SKU, &s.Name, &s.Description, &s.CategoryID, &s.CategoryName,
			&s.UnitPrice, &s.QuantityAvailable, &s.IsAvailable, &s.IsFeatured, &s.ImageURL,
			&s.CreatedAt, &s.UpdatedAt, &s.Version, &s.TotalSold,
		)
		if err != nil {
			return nil, fmt.Errorf("scan selling item: %w", err)
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return result, nil
}

func UpdateItem(ctx context.Context, db *sql.DB, id int64, upd ItemUpdate) (*models.Item, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, database.InvalidArgument("name", "This field may not be blank.")
		}
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.CategoryID != nil {
		add("category_id", *upd.CategoryID)
	}
	if upd.UnitPrice != nil {
		if upd.UnitPrice.IsNegative() {
			return nil, database.InvalidArgument("unit_price", "Price cannot be negative.")
		}
		add("unit_price", upd.UnitPrice.Round(2))
	}
	if upd.IsAvailable != nil {
		add("is_available", *upd.IsAvailable)
	}
	if upd.IsFeatured != nil {
		add("is_featured", *upd.IsFeatured)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}

	if len(sets) == 0 {
		return GetItem(ctx, db, id)
	}

	args = append(args, id, upd.Version)
	query := fmt.Sprintf(
		`UPDATE items SET %s, version = version + 1, updated_at = NOW()
		 WHERE id = $%d AND version = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	if err := requireVersionedRow(ctx, db, result, id); err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// requireVersionedRow tells a missing row apart from a stale version after a
// version-guarded UPDATE touched nothing.
func requireVersionedRow(ctx context.Context, db *sql.DB, result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := GetItem(ctx, db, id); err != nil {
		return err
	}
	return database.ErrOptimisticLockFailed
}

func UpdateStockOptimistic(ctx context.Context, db *sql.DB, itemID int64, newStock int, version int) error {
	if newStock < 0 {
		return database.InvalidArgument("quantity_available", "Stock cannot be negative.")
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET quantity_available = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		newStock, itemID, version)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	return requireVersionedRow(ctx, db, result, itemID)
}

// AdjustStock applies a signed delta to an item's stock inside tx. Stock is
// never taken below zero.
func AdjustStock(ctx context.Context, tx *sql.Tx, itemID int64, delta int) (*models.Item, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE items
		 SET quantity_available = quantity_available + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND quantity_available + $1 >= 0`,
		delta, itemID)
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	item, err := GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, &database.InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.QuantityAvailable,
			Requested: -delta,
		}
	}

	return item, nil
}

// DeleteItem refuses to remove an item that any order line still references.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return database.ErrItemReferenced
		}
		return fmt.Errorf("delete item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrItemNotFound
	}

	return nil
}
