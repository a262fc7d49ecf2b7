package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/logger"
	"github.com/safar/electronics-store/internal/models"
	"go.uber.org/zap"
)

type PaymentOutcome string

const (
	OutcomeCompleted PaymentOutcome = "completed"
	OutcomeFailed    PaymentOutcome = "failed"
)

type InitiatePaymentRequest struct {
	PaymentID int64
	Caller    models.Caller
	// CustomerEmail lets a guest prove ownership of an order placed from
	// another session.
	CustomerEmail   string
	PaymentMethodID *int64
	// Outcome defaults to OutcomeCompleted.
	Outcome PaymentOutcome
}

type PaymentResult struct {
	Payment *models.Payment
	Receipt *models.Receipt
	Invoice *models.Invoice
}

const paymentSelect = `
	SELECT p.id, p.order_id, p.payment_method_id, COALESCE(p.transaction_id, ''), p.amount_paid, p.status,
	       p.created_at, p.updated_at, p.completed_at
	FROM payments p
	JOIN orders o ON o.id = p.order_id`

func scanPayment(row rowScanner, p *models.Payment) error {
	return row.Scan(
		&p.ID,
		&p.OrderID,
		&p.PaymentMethodID,
		&p.TransactionID,
		&p.AmountPaid,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CompletedAt,
	)
}

func transactionID(orderID int64, caller models.Caller, paymentID int64) string {
	who := "anon"
	if customerID, ok := caller.Identity.CustomerID(); ok {
		who = strconv.FormatInt(customerID, 10)
	}
	return fmt.Sprintf("TXN-%d-%s-%d", orderID, who, paymentID)
}

// InitiatePayment settles a pending payment. On success the order becomes
// paid and its receipt and invoice are issued in the same transaction. A
// failed outcome only marks the payment failed.
func InitiatePayment(ctx context.Context, db *sql.DB, req InitiatePaymentRequest) (*PaymentResult, error) {
	log := logger.FromContext(ctx)

	outcome := req.Outcome
	if outcome == "" {
		outcome = OutcomeCompleted
	}
	if outcome != OutcomeCompleted && outcome != OutcomeFailed {
		return nil, database.InvalidArgument("outcome", "Outcome must be completed or failed.")
	}

	caller := req.Caller
	if req.CustomerEmail != "" {
		caller.Email = req.CustomerEmail
	}

	var result *PaymentResult

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		result = &PaymentResult{Payment: &models.Payment{}}
		payment := result.Payment

		err := scanPayment(tx.QueryRowContext(ctx,
			paymentSelect+` WHERE p.id = $1 FOR UPDATE OF p`, req.PaymentID), payment)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrPaymentNotFound
			}
			return fmt.Errorf("lock payment: %w", err)
		}

		if payment.Status != models.PaymentStatusPending {
			return fmt.Errorf("payment %d is %s: %w", payment.ID, payment.Status, database.ErrAlreadyProcessed)
		}

		order, err := lockOrder(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}

		if !CanAccess(caller, order.Owner()) {
			return database.ErrForbidden
		}

		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("order %d is %s: %w", order.ID, order.Status, database.ErrAlreadyProcessed)
		}

		if outcome == OutcomeFailed {
			err := tx.QueryRowContext(ctx,
				`UPDATE payments
				 SET status = $1, payment_method_id = COALESCE($2, payment_method_id), updated_at = NOW()
				 WHERE id = $3
				 RETURNING status, payment_method_id, updated_at`,
				models.PaymentStatusFailed, req.PaymentMethodID, payment.ID).Scan(
				&payment.Status, &payment.PaymentMethodID, &payment.UpdatedAt)
			if err != nil {
				if database.IsForeignKeyViolation(err) {
					return database.InvalidArgument("payment_method", "Unknown payment method.")
				}
				return fmt.Errorf("fail payment: %w", err)
			}
			return nil
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE payments
			 SET status = $1, transaction_id = $2, amount_paid = $3,
			     payment_method_id = COALESCE($4, payment_method_id),
			     completed_at = NOW(), updated_at = NOW()
			 WHERE id = $5
			 RETURNING status, transaction_id, amount_paid, payment_method_id, completed_at, updated_at`,
			models.PaymentStatusCompleted, transactionID(order.ID, caller, payment.ID), order.TotalAmount,
			req.PaymentMethodID, payment.ID).Scan(
			&payment.Status,
			&payment.TransactionID,
			&payment.AmountPaid,
			&payment.PaymentMethodID,
			&payment.CompletedAt,
			&payment.UpdatedAt,
		)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.InvalidArgument("payment_method", "Unknown payment method.")
			}
			if database.IsUniqueViolation(err) {
				return database.ErrDuplicate
			}
			return fmt.Errorf("complete payment: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
			models.OrderStatusPaid, order.ID)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		order.Status = models.OrderStatusPaid

		_, err = tx.ExecContext(ctx,
			`INSERT INTO payment_history (payment_id, order_id, customer_id, created_at)
			 VALUES ($1, $2, $3, NOW())`,
			payment.ID, order.ID, order.CustomerID)
		if err != nil {
			return fmt.Errorf("record payment history: %w", err)
		}

		result.Receipt, err = IssueReceipt(ctx, tx, order)
		if err != nil {
			return err
		}

		result.Invoice, err = IssueInvoice(ctx, tx, order)
		return err
	})
	if err != nil {
		log.Info("payment rejected", zap.Int64("payment_id", req.PaymentID), zap.Error(err))
		return nil, err
	}

	if result.Receipt != nil {
		log.Info("payment completed",
			zap.Int64("payment_id", result.Payment.ID),
			zap.Int64("order_id", result.Payment.OrderID),
			zap.String("transaction_id", result.Payment.TransactionID),
			zap.String("receipt", result.Receipt.ReceiptNumber),
			zap.String("invoice", result.Invoice.InvoiceNumber))
	} else {
		log.Info("payment failed",
			zap.Int64("payment_id", result.Payment.ID),
			zap.Int64("order_id", result.Payment.OrderID))
	}

	return result, nil
}

func GetPayment(ctx context.Context, db *sql.DB, caller models.Caller, id int64) (*models.Payment, error) {
	payment := &models.Payment{}
	var owner models.Owner

	err := db.QueryRowContext(ctx,
		`SELECT p.id, p.order_id, p.payment_method_id, COALESCE(p.transaction_id, ''), p.amount_paid, p.status,
		        p.created_at, p.updated_at, p.completed_at,
		        o.customer_id, COALESCE(o.session_token, ''), COALESCE(o.customer_email, '')
		 FROM payments p
		 JOIN orders o ON o.id = p.order_id
		 WHERE p.id = $1`, id).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.PaymentMethodID,
		&payment.TransactionID,
		&payment.AmountPaid,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&payment.CompletedAt,
		&owner.CustomerID,
		&owner.SessionToken,
		&owner.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	if !CanAccess(caller, owner) {
		return nil, database.ErrForbidden
	}

	return payment, nil
}

// countScoped counts rows of table joined to orders through order_id and
// restricted to what caller may see.
func countScoped(ctx context.Context, db *sql.DB, table string, caller models.Caller) (int64, error) {
	filter, args := ownerFilter(caller, "o", 1)

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` t JOIN orders o ON o.id = t.order_id WHERE `+filter,
		args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func ListPayments(ctx context.Context, db *sql.DB, caller models.Caller, page, pageSize int) (*OffsetPage, error) {
	total, err := countScoped(ctx, db, "payments", caller)
	if err != nil {
		return nil, err
	}

	filter, args := ownerFilter(caller, "o", 3)
	offset := (page - 1) * pageSize

	rows, err := db.QueryContext(ctx,
		paymentSelect+` WHERE `+filter+`
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`,
		append([]any{pageSize, offset}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(payments, total, page, pageSize), nil
}

func ListPaymentHistory(ctx context.Context, db *sql.DB, caller models.Caller, page, pageSize int) (*OffsetPage, error) {
	total, err := countScoped(ctx, db, "payment_history", caller)
	if err != nil {
		return nil, err
	}

	filter, args := ownerFilter(caller, "o", 3)
	offset := (page - 1) * pageSize

	rows, err := db.QueryContext(ctx,
		`SELECT h.id, h.payment_id, h.order_id, h.customer_id, h.created_at,
		        p.id, p.order_id, p.payment_method_id, COALESCE(p.transaction_id, ''), p.amount_paid, p.status,
		        p.created_at, p.updated_at, p.completed_at
		 FROM payment_history h
		 JOIN payments p ON p.id = h.payment_id
		 JOIN orders o ON o.id = h.order_id
		 WHERE `+filter+`
		 ORDER BY h.created_at DESC, h.id DESC
		 LIMIT $1 OFFSET $2`,
		append([]any{pageSize, offset}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list payment history: %w", err)
	}
	defer rows.Close()

	history := []models.PaymentHistory{}
	for rows.Next() {
		var h models.PaymentHistory
		err := rows.Scan(
			&h.ID,
			&h.PaymentID,
			&h.OrderID,
			&h.CustomerID,
			&h.CreatedAt,
			&h.Payment.ID,
			&h.Payment.OrderID,
			&h.Payment.PaymentMethodID,
			&h.Payment.TransactionID,
			&h.Payment.AmountPaid,
			&h.Payment.Status,
			&h.Payment.CreatedAt,
			&h.Payment.UpdatedAt,
			&h.Payment.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment history: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(history, total, page, pageSize), nil
}

func ListPaymentMethods(ctx context.Context, db *sql.DB) ([]models.PaymentMethod, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, method_name FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	methods := []models.PaymentMethod{}
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		methods = append(methods, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return methods, nil
}
