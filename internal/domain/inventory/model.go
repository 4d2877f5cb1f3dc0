package inventory

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
)

// ErrInsufficientStock is returned when a withdrawal exceeds stock on hand.
var ErrInsufficientStock = apperr.Conflict("insufficient stock")

const (
	CategoryMedicine  = "medicine"
	CategoryEquipment = "equipment"
	CategorySupplies  = "supplies"
	CategorySurgical  = "surgical"
)

const (
	StatusAvailable  = "available"
	StatusLowStock   = "low-stock"
	StatusOutOfStock = "out-of-stock"
	StatusExpired    = "expired"
)

// Item maps to the inventory_items table.
type Item struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	GenericName  string     `db:"generic_name" json:"generic_name,omitempty"`
	Category     string     `db:"category" json:"category"`
	Manufacturer string     `db:"manufacturer" json:"manufacturer,omitempty"`
	BatchNumber  string     `db:"batch_number" json:"batch_number,omitempty"`
	Quantity     int        `db:"quantity" json:"quantity"`
	Unit         string     `db:"unit" json:"unit,omitempty"`
	ReorderLevel int        `db:"reorder_level" json:"reorder_level"`
	UnitPrice    float64    `db:"unit_price" json:"unit_price"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Location     string     `db:"location" json:"location,omitempty"`
	Supplier     string     `db:"supplier" json:"supplier,omitempty"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (i Item) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&i.Category, validation.Required,
			validation.In(CategoryMedicine, CategoryEquipment, CategorySupplies, CategorySurgical)),
		validation.Field(&i.Quantity, validation.Min(0)),
		validation.Field(&i.ReorderLevel, validation.Min(0)),
		validation.Field(&i.UnitPrice, validation.Min(0.0)),
	)
}

// RecomputeStatus derives Status from stock and expiry. Stock levels take
// precedence over expiry.
func (i *Item) RecomputeStatus(now time.Time) {
	switch {
	case i.Quantity <= 0:
		i.Status = StatusOutOfStock
	case i.Quantity <= i.ReorderLevel:
		i.Status = StatusLowStock
	case i.ExpiryDate != nil && i.ExpiryDate.Before(now):
		i.Status = StatusExpired
	default:
		i.Status = StatusAvailable
	}
}

// NeedsReorder reports whether the item is low or out of stock.
func (i *Item) NeedsReorder() bool {
	return i.Status == StatusLowStock || i.Status == StatusOutOfStock
}

// Usage is a stock withdrawal.
type Usage struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

func (u Usage) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Quantity, validation.Required, validation.Min(1)),
	)
}

// Filter narrows inventory listings. Empty fields match everything.
type Filter struct {
	Category string
	Status   string
	Search   string
	Limit    int
	Offset   int
}
