package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/shopspring/decimal"
)

var metricTypes = map[string]bool{
	models.MetricProfitability: true,
	models.MetricTotalSales:    true,
	models.MetricItemsSold:     true,
}

// settledStatuses are the order statuses that count as revenue.
const settledStatuses = `('paid', 'processing', 'shipped', 'delivered')`

// ListPerformanceMetrics returns stored metrics, newest first. An empty
// metricType returns every type.
func ListPerformanceMetrics(ctx context.Context, db *sql.DB, metricType string) ([]models.PerformanceMetric, error) {
	if metricType != "" && !metricTypes[metricType] {
		return nil, database.InvalidArgument("metric_type", fmt.Sprintf("Unknown metric type %q.", metricType))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, metric_type, value, customer_id, item_id, calculated_at
		 FROM performance_metrics
		 WHERE $1 = '' OR metric_type = $1
		 ORDER BY calculated_at DESC, id DESC`, metricType)
	if err != nil {
		return nil, fmt.Errorf("list performance metrics: %w", err)
	}
	defer rows.Close()

	metrics := []models.PerformanceMetric{}
	for rows.Next() {
		var m models.PerformanceMetric
		err := rows.Scan(&m.ID, &m.MetricType, &m.Value, &m.CustomerID, &m.ItemID, &m.CalculatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan performance metric: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return metrics, nil
}

func GetSalesSummary(ctx context.Context, q database.Querier) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{}

	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		 FROM orders
		 WHERE status IN `+settledStatuses).Scan(&summary.PaidOrders, &summary.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("sum orders: %w", err)
	}

	err = q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(l.quantity), 0)
		 FROM order_lines l
		 JOIN orders o ON o.id = l.order_id
		 WHERE o.status IN `+settledStatuses).Scan(&summary.ItemsSold)
	if err != nil {
		return nil, fmt.Errorf("sum order lines: %w", err)
	}

	return summary, nil
}

// RecordSalesMetrics snapshots the current sales summary as total_sales and
// items_sold rows, plus one profitability row per item with settled sales.
func RecordSalesMetrics(ctx context.Context, db *sql.DB) ([]models.PerformanceMetric, error) {
	var recorded []models.PerformanceMetric

	err := database.WithTransaction(ctx, db, database.SnapshotTxOptions(), func(tx *sql.Tx) error {
		summary, err := GetSalesSummary(ctx, tx)
		if err != nil {
			return err
		}

		values := []models.PerformanceMetric{
			{MetricType: models.MetricTotalSales, Value: summary.TotalRevenue},
			{MetricType: models.MetricItemsSold, Value: decimal.NewFromInt(summary.ItemsSold)},
		}

		perItem, err := itemRevenue(ctx, tx)
		if err != nil {
			return err
		}
		values = append(values, perItem...)

		for _, m := range values {
			err := tx.QueryRowContext(ctx,
				`INSERT INTO performance_metrics (metric_type, value, item_id, calculated_at)
				 VALUES ($1, $2, $3, NOW())
				 RETURNING id, calculated_at`,
				m.MetricType, m.Value, m.ItemID).Scan(&m.ID, &m.CalculatedAt)
			if err != nil {
				return fmt.Errorf("record %s metric: %w", m.MetricType, err)
			}
			recorded = append(recorded, m)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return recorded, nil
}

// itemRevenue returns one profitability metric per item that has settled
// sales, valued at the sum of its order line subtotals.
func itemRevenue(ctx context.Context, q database.Querier) ([]models.PerformanceMetric, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.item_id, SUM(l.subtotal)
		 FROM order_lines l
		 JOIN orders o ON o.id = l.order_id
		 WHERE o.status IN `+settledStatuses+`
		 GROUP BY l.item_id
		 ORDER BY l.item_id`)
	if err != nil {
		return nil, fmt.Errorf("sum item revenue: %w", err)
	}
	defer rows.Close()

	var metrics []models.PerformanceMetric
	for rows.Next() {
		var itemID int64
		m := models.PerformanceMetric{MetricType: models.MetricProfitability}
		if err := rows.Scan(&itemID, &m.Value); err != nil {
			return nil, fmt.Errorf("scan item revenue: %w", err)
		}
		m.ItemID = &itemID
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return metrics, nil
}
