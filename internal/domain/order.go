package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
	OrderStatusReturned   OrderStatus = "RETURNED"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
)

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "COD"
	PaymentMethodPayPal     PaymentMethod = "PAYPAL"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
)

// RequiresUpfrontCapture reports whether an order paid with this method
// must have a completed payment before it may advance past CONFIRMED.
// Cash on delivery is settled at the door, so it never blocks.
func (m PaymentMethod) RequiresUpfrontCapture() bool {
	return m == PaymentMethodPayPal || m == PaymentMethodCreditCard
}

// OrderItem is one line of an order, referencing the inventory-tracked
// size and the quantity claimed from it.
type OrderItem struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"index;column:order_id" json:"orderId"`
	SizeID    string          `gorm:"column:size_id" json:"sizeId"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric" json:"unitPrice"`
}

// Order carries the subset of the order surface the core reads and writes:
// lifecycle status, payment state for pre-condition checks, and the line
// items needed for stock compensation.
type Order struct {
	ID            string        `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex" json:"orderNumber"`
	Status        OrderStatus   `gorm:"not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null" json:"paymentStatus"`
	PaymentMethod PaymentMethod `gorm:"not null" json:"paymentMethod"`
	Items         []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	Total         decimal.Decimal `gorm:"type:numeric" json:"total"`
	CustomerEmail string        `json:"customerEmail"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
