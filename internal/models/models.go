package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Item struct {
	ID                int64           `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	CategoryID        *int64          `json:"category_id,omitempty"`
	CategoryName      string          `json:"category,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	QuantityAvailable int             `json:"quantity_available"`
	IsAvailable       bool            `json:"is_available"`
	IsFeatured        bool            `json:"is_featured"`
	ImageURL          string          `json:"image_url,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

type SellingItem struct {
	Item
	TotalSold int64 `json:"total_sold"`
}

type Customer struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	DeliveryAddress string    `json:"delivery_address,omitempty"`
	UserType        Role      `json:"user_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

type Cart struct {
	ID        int64           `json:"id"`
	Identity  Identity        `json:"-"`
	Lines     []CartLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartLine keeps the unit price seen when the item was first added.
type CartLine struct {
	ID        int64           `json:"id"`
	CartID    int64           `json:"cart_id"`
	ItemID    int64           `json:"item"`
	ItemName  string          `json:"item_name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      *int64          `json:"customer,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	SessionToken    string          `json:"-"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address"`
	PaymentID       int64           `json:"payment_id,omitempty"`
	CreatedAt       time.Time       `json:"order_date"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Lines           []OrderLine     `json:"order_items,omitempty"`
}

func (o *Order) Owner() Owner {
	return Owner{CustomerID: o.CustomerID, SessionToken: o.SessionToken, Email: o.CustomerEmail}
}

type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ItemID    int64           `json:"item"`
	ItemName  string          `json:"item_name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price_at_time_of_order"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

type PaymentMethod struct {
	ID   int64  `json:"id"`
	Name string `json:"method_name"`
}

type Payment struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order"`
	PaymentMethodID *int64          `json:"payment_method,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"payment_date,omitempty"`
}

type PaymentHistory struct {
	ID         int64     `json:"id"`
	PaymentID  int64     `json:"payment"`
	OrderID    int64     `json:"order"`
	CustomerID *int64    `json:"customer,omitempty"`
	Payment    Payment   `json:"payment_details"`
	CreatedAt  time.Time `json:"transaction_date"`
}

type Receipt struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order"`
	ReceiptNumber string          `json:"receipt_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PDFURL        string          `json:"pdf_url,omitempty"`
	CreatedAt     time.Time       `json:"receipt_date"`
}

type Invoice struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PDFURL        string          `json:"pdf_url,omitempty"`
	CreatedAt     time.Time       `json:"invoice_date"`
}

type PerformanceMetric struct {
	ID           int64           `json:"id"`
	MetricType   string          `json:"metric_type"`
	Value        decimal.Decimal `json:"value"`
	CustomerID   *int64          `json:"customer,omitempty"`
	ItemID       *int64          `json:"item,omitempty"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

type SalesSummary struct {
	PaidOrders   int64           `json:"paid_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	ItemsSold    int64           `json:"items_sold"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	InvoiceStatusIssued    = "issued"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

const (
	MetricProfitability = "profitability"
	MetricTotalSales    = "total_sales"
	MetricItemsSold     = "items_sold"
)
