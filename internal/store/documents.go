package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
)

func ReceiptNumber(orderID int64) string { return fmt.Sprintf("REC-%d", orderID) }

func InvoiceNumber(orderID int64) string { return fmt.Sprintf("INV-%d", orderID) }

func receiptPath(orderID int64) string { return fmt.Sprintf("/media/receipts/%d.pdf", orderID) }

func invoicePath(orderID int64) string { return fmt.Sprintf("/media/invoices/%d.pdf", orderID) }

const receiptSelect = `
	SELECT r.id, r.order_id, r.receipt_number, r.total_amount, r.pdf_url, r.created_at
	FROM receipts r
	JOIN orders o ON o.id = r.order_id`

const invoiceSelect = `
	SELECT v.id, v.order_id, v.invoice_number, v.total_amount, v.status, v.due_date, v.pdf_url, v.created_at
	FROM invoices v
	JOIN orders o ON o.id = v.order_id`

func scanReceipt(row rowScanner, r *models.Receipt) error {
	return row.Scan(&r.ID, &r.OrderID, &r.ReceiptNumber, &r.TotalAmount, &r.PDFURL, &r.CreatedAt)
}

func scanInvoice(row rowScanner, v *models.Invoice) error {
	return row.Scan(&v.ID, &v.OrderID, &v.InvoiceNumber, &v.TotalAmount, &v.Status, &v.DueDate, &v.PDFURL, &v.CreatedAt)
}

// IssueReceipt returns the order's receipt, creating it on the first call.
// Later calls return the stored row unchanged.
func IssueReceipt(ctx context.Context, q database.Querier, order *models.Order) (*models.Receipt, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO receipts (order_id, receipt_number, total_amount, pdf_url, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (order_id) DO NOTHING`,
		order.ID, ReceiptNumber(order.ID), order.TotalAmount, receiptPath(order.ID))
	if err != nil {
		return nil, fmt.Errorf("issue receipt: %w", err)
	}

	receipt := &models.Receipt{}
	err = scanReceipt(q.QueryRowContext(ctx, receiptSelect+` WHERE r.order_id = $1`, order.ID), receipt)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}

	return receipt, nil
}

// IssueInvoice is the invoice counterpart of IssueReceipt. Invoices issued
// here are already paid.
func IssueInvoice(ctx context.Context, q database.Querier, order *models.Order) (*models.Invoice, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO invoices (order_id, invoice_number, total_amount, status, pdf_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (order_id) DO NOTHING`,
		order.ID, InvoiceNumber(order.ID), order.TotalAmount, models.InvoiceStatusPaid, invoicePath(order.ID))
	if err != nil {
		return nil, fmt.Errorf("issue invoice: %w", err)
	}

	invoice := &models.Invoice{}
	err = scanInvoice(q.QueryRowContext(ctx, invoiceSelect+` WHERE v.order_id = $1`, order.ID), invoice)
	if err != nil {
		return nil, fmt.Errorf("fetch invoice: %w", err)
	}

	return invoice, nil
}

const ownerColumns = `, o.customer_id, COALESCE(o.session_token, ''), COALESCE(o.customer_email, '')`

func GetReceipt(ctx context.Context, db *sql.DB, caller models.Caller, id int64) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var owner models.Owner

	query := `
		SELECT r.id, r.order_id, r.receipt_number, r.total_amount, r.pdf_url, r.created_at` + ownerColumns + `
		FROM receipts r
		JOIN orders o ON o.id = r.order_id
		WHERE r.id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&receipt.ID, &receipt.OrderID, &receipt.ReceiptNumber, &receipt.TotalAmount, &receipt.PDFURL, &receipt.CreatedAt,
		&owner.CustomerID, &owner.SessionToken, &owner.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	if !CanAccess(caller, owner) {
		return nil, database.ErrForbidden
	}

	return receipt, nil
}

func GetInvoice(ctx context.Context, db *sql.DB, caller models.Caller, id int64) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	var owner models.Owner

	query := `
		SELECT v.id, v.order_id, v.invoice_number, v.total_amount, v.status, v.due_date, v.pdf_url, v.created_at` + ownerColumns + `
		FROM invoices v
		JOIN orders o ON o.id = v.order_id
		WHERE v.id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&invoice.ID, &invoice.OrderID, &invoice.InvoiceNumber, &invoice.TotalAmount, &invoice.Status,
		&invoice.DueDate, &invoice.PDFURL, &invoice.CreatedAt,
		&owner.CustomerID, &owner.SessionToken, &owner.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	if !CanAccess(caller, owner) {
		return nil, database.ErrForbidden
	}

	return invoice, nil
}

func ListReceipts(ctx context.Context, db *sql.DB, caller models.Caller, page, pageSize int) (*OffsetPage, error) {
	total, err := countScoped(ctx, db, "receipts", caller)
	if err != nil {
		return nil, err
	}

	filter, args := ownerFilter(caller, "o", 3)
	offset := (page - 1) * pageSize

	rows, err := db.QueryContext(ctx,
		receiptSelect+` WHERE `+filter+`
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT $1 OFFSET $2`,
		append([]any{pageSize, offset}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := []models.Receipt{}
	for rows.Next() {
		var r models.Receipt
		if err := scanReceipt(rows, &r); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(receipts, total, page, pageSize), nil
}

func ListInvoices(ctx context.Context, db *sql.DB, caller models.Caller, page, pageSize int) (*OffsetPage, error) {
	total, err := countScoped(ctx, db, "invoices", caller)
	if err != nil {
		return nil, err
	}

	filter, args := ownerFilter(caller, "o", 3)
	offset := (page - 1) * pageSize

	rows, err := db.QueryContext(ctx,
		invoiceSelect+` WHERE `+filter+`
		 ORDER BY v.created_at DESC, v.id DESC
		 LIMIT $1 OFFSET $2`,
		append([]any{pageSize, offset}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		var v models.Invoice
		if err := scanInvoice(rows, &v); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(invoices, total, page, pageSize), nil
}
