package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductType classifies a catalog product
type ProductType string

const (
	ProductTypeVTS              ProductType = "VTS"
	ProductTypeAMS              ProductType = "AMS"
	ProductTypeFTS              ProductType = "FTS"
	ProductTypeMaritimeAlert    ProductType = "MARITIME_ALERT"
	ProductTypeReportCompliance ProductType = "REPORT_COMPLIANCE"
	ProductTypeReportChronology ProductType = "REPORT_CHRONOLOGY"
	ProductTypeInvestigation    ProductType = "INVESTIGATION"
	ProductTypeCustomReport     ProductType = "CUSTOM_REPORT"
)

// IsLaunchable reports whether the product is launched from the dashboard after purchase
func (t ProductType) IsLaunchable() bool {
	switch t {
	case ProductTypeVTS, ProductTypeAMS, ProductTypeFTS, ProductTypeMaritimeAlert:
		return true
	}
	return false
}

// IsReport reports whether the product is delivered as a report
func (t ProductType) IsReport() bool {
	return t == ProductTypeReportCompliance || t == ProductTypeReportChronology
}

// Valid reports whether t is a known product type
func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeVTS, ProductTypeAMS, ProductTypeFTS, ProductTypeMaritimeAlert,
		ProductTypeReportCompliance, ProductTypeReportChronology,
		ProductTypeInvestigation, ProductTypeCustomReport:
		return true
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	ShortDescription string          `db:"short_description" json:"shortDescription"`
	Price            decimal.Decimal `db:"price" json:"price"`
	CreditCost       int64           `db:"credit_cost" json:"creditCost"`
	ImageURL         string          `db:"image_url" json:"imageUrl"`
	Tags             pq.StringArray  `db:"tags" json:"tags"`
	Type             ProductType     `db:"type" json:"type"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}

// GeoPoint is a single vertex of an area of interest
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Timeframe bounds a tracking or reporting window
type Timeframe struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Configuration is the customization a user applied to a product before
// adding it to the cart. The cart never interprets it.
type Configuration struct {
	AlertType        string     `json:"alertType,omitempty"`
	Area             []GeoPoint `json:"area,omitempty"`
	TrackingCriteria []string   `json:"trackingCriteria,omitempty"`
	Timeframe        *Timeframe `json:"timeframe,omitempty"`
	VesselIDs        []string   `json:"vesselIds,omitempty"`
	RFIQuestion      string     `json:"rfiQuestion,omitempty"`
	RFIPriority      string     `json:"rfiPriority,omitempty"`
}

// Value implements driver.Valuer so configurations land in JSONB columns
func (c Configuration) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Configuration) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported configuration source type %T", src)
	}
	return json.Unmarshal(data, c)
}

// CartItem is one line in a shopping cart
type CartItem struct {
	ItemID               string           `json:"itemId"`
	Product              Product          `json:"product"`
	Quantity             int              `json:"quantity"`
	ConfiguredPrice      *decimal.Decimal `json:"configuredPrice,omitempty"`
	ConfiguredCreditCost *int64           `json:"configuredCreditCost,omitempty"`
	ConfigurationDetails *Configuration   `json:"configurationDetails,omitempty"`
}

// Cart line limits. They keep LineCredits well inside int64.
const (
	MaxQuantity   = 999
	MaxCreditCost = 1_000_000_000
)

// UnitPrice returns the configured price when present, otherwise the product price
func (i CartItem) UnitPrice() decimal.Decimal {
	if i.ConfiguredPrice != nil {
		return *i.ConfiguredPrice
	}
	return i.Product.Price
}

// UnitCredits returns the configured credit cost when present, otherwise the product credit cost
func (i CartItem) UnitCredits() int64 {
	if i.ConfiguredCreditCost != nil {
		return *i.ConfiguredCreditCost
	}
	return i.Product.CreditCost
}

// LinePrice returns UnitPrice × Quantity
func (i CartItem) LinePrice() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineCredits returns UnitCredits × Quantity
func (i CartItem) LineCredits() int64 {
	return i.UnitCredits() * int64(i.Quantity)
}

// IsConfigured reports whether the line carries a configuration or price override
func (i CartItem) IsConfigured() bool {
	return i.ConfigurationDetails != nil || i.ConfiguredPrice != nil || i.ConfiguredCreditCost != nil
}

// PaymentMethod selects how an order is paid
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodCredits    PaymentMethod = "credits"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodCredits
}

// Order represents a customer order
type Order struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"userId"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	TotalCredits   int64           `db:"total_credits" json:"totalCredits"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	Status         string          `db:"status" json:"status"`
	BillingName    string          `db:"billing_name" json:"billingName"`
	BillingEmail   string          `db:"billing_email" json:"billingEmail"`
	BillingAddress string          `db:"billing_address" json:"billingAddress"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is the persisted snapshot of a cart line
type OrderItem struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"orderId"`
	ProductID     int64           `db:"product_id" json:"productId"`
	ProductName   string          `db:"product_name" json:"productName"`
	ProductType   ProductType     `db:"product_type" json:"productType"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unitPrice"`
	UnitCredits   int64           `db:"unit_credits" json:"unitCredits"`
	Configuration *Configuration  `db:"configuration" json:"configuration,omitempty"`
}

// Payment represents a payment transaction
type Payment struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"orderId"`
	Method       PaymentMethod   `db:"method" json:"method"`
	Status       string          `db:"status" json:"status"`
	ProviderTxID string          `db:"provider_tx_id" json:"providerTxId,omitempty"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Credits      int64           `db:"credits" json:"credits"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusFailed    = "FAILED"
)

// orderTransitions lists where an order may move from each status
var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusConfirmed, OrderStatusCancelled},
}

// PriorOrderStatuses returns the statuses an order may hold before moving
// to status. status itself is included so a repeated update is a no-op.
func PriorOrderStatuses(status string) []string {
	prior := []string{status}
	for from, next := range orderTransitions {
		for _, to := range next {
			if to == status {
				prior = append(prior, from)
			}
		}
	}
	return prior
}

// CanTransitionOrder reports whether an order in from may move to to
func CanTransitionOrder(from, to string) bool {
	for _, s := range PriorOrderStatuses(to) {
		if s == from {
			return true
		}
	}
	return false
}

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// AlertSeverity tags a notification record
type AlertSeverity string

const (
	AlertSeverityInfo    AlertSeverity = "INFO"
	AlertSeveritySuccess AlertSeverity = "SUCCESS"
	AlertSeverityWarning AlertSeverity = "WARNING"
	AlertSeverityError   AlertSeverity = "ERROR"
)

// Valid reports whether s is one of the four severities
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityInfo, AlertSeveritySuccess, AlertSeverityWarning, AlertSeverityError:
		return true
	}
	return false
}

// Alert is a notification shown on the dashboard
type Alert struct {
	ID        int64         `db:"id" json:"id"`
	UserID    int64         `db:"user_id" json:"userId"`
	Severity  AlertSeverity `db:"severity" json:"severity"`
	Title     string        `db:"title" json:"title"`
	Message   string        `db:"message" json:"message"`
	VesselID  *string       `db:"vessel_id" json:"vesselId,omitempty"`
	Read      bool          `db:"read" json:"read"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
