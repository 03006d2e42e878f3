package domain

import "time"

// MovementKind classifies an entry in the stock movement log.
type MovementKind string

const (
	MovementReserve MovementKind = "RESERVE"
	MovementRelease MovementKind = "RELEASE"
	MovementConfirm MovementKind = "CONFIRM"
	MovementAdjust  MovementKind = "ADJUST"
)

// StockRecord tracks inventory counters for a single size. It is only
// mutated through ledger operations, which run under the per-size lock
// owned by the stock store.
type StockRecord struct {
	SizeID           string    `gorm:"primaryKey;column:size_id" json:"sizeId"`
	QuantityInStock  int       `gorm:"not null" json:"quantityInStock"`
	ReservedQuantity int       `gorm:"not null" json:"reservedQuantity"`
	MinStockLevel    int       `gorm:"not null" json:"minStockLevel"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Available is the quantity a new reservation may claim.
func (r *StockRecord) Available() int {
	return r.QuantityInStock - r.ReservedQuantity
}

// IsLowStock reports whether available stock has fallen under the
// configured minimum level for this size.
func (r *StockRecord) IsLowStock() bool {
	return r.Available() < r.MinStockLevel
}

// StockMovement is an immutable audit record. One movement is appended for
// every successful ledger mutation; movements are never updated or deleted.
type StockMovement struct {
	ID              string       `gorm:"primaryKey" json:"id"`
	SizeID          string       `gorm:"index;column:size_id" json:"sizeId"`
	Kind            MovementKind `gorm:"not null" json:"kind"`
	Quantity        int          `gorm:"not null" json:"quantity"`
	ReferenceNumber string       `gorm:"index" json:"referenceNumber"`
	Note            string       `json:"note"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// StockStats aggregates inventory counters across all sizes.
type StockStats struct {
	TotalItems             int     `json:"totalItems"`
	TotalStockQuantity     int     `json:"totalStockQuantity"`
	TotalReservedQuantity  int     `json:"totalReservedQuantity"`
	TotalAvailableQuantity int     `json:"totalAvailableQuantity"`
	LowStockItems          int     `json:"lowStockItems"`
	OutOfStockItems        int     `json:"outOfStockItems"`
	LowStockPercentage     float64 `json:"lowStockPercentage"`
	OutOfStockPercentage   float64 `json:"outOfStockPercentage"`
}
