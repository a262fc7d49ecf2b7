package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
)

type CustomerInput struct {
	Email           string
	Username        string
	PhoneNumber     string
	DeliveryAddress string
	UserType        models.Role
}

const customerColumns = `id, email, username, phone_number, delivery_address, user_type, created_at, updated_at, version`

func scanCustomer(row rowScanner, c *models.Customer) error {
	return row.Scan(
		&c.ID,
		&c.Email,
		&c.Username,
		&c.PhoneNumber,
		&c.DeliveryAddress,
		&c.UserType,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
}

func CreateCustomer(ctx context.Context, db *sql.DB, in CustomerInput) (*models.Customer, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, database.InvalidArgument("email", "This field is required.")
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, database.InvalidArgument("username", "This field is required.")
	}
	if in.UserType == "" {
		in.UserType = models.RoleCustomer
	}

	customer := &models.Customer{}

	query := `
		INSERT INTO customers (email, username, phone_number, delivery_address, user_type, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), 1)
		RETURNING ` + customerColumns

	err := scanCustomer(db.QueryRowContext(ctx, query,
		in.Email, in.Username, in.PhoneNumber, in.DeliveryAddress, in.UserType), customer)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicate
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, q database.Querier, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	err := scanCustomer(q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id), customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

func ListCustomers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(customers, total, page, pageSize), nil
}
