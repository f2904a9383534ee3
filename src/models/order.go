package models

import (
	"tix/src/types"
)

// Order is one buyer's cart against one sale. A user keeps at most one
// order in a non-terminal status per sale; the reservation gate and the
// payment callback are the only writers of Status once the order leaves
// ONGOING.
type Order struct {
	ID            uint              `gorm:"primarykey" json:"id"`
	UserID        uint              `json:"user_id,omitempty"`
	SaleID        uint              `json:"sale_id,omitempty"`
	Status        types.OrderStatus `gorm:"default:'ongoing'" json:"status,omitempty"`
	TransactionID *string           `json:"transaction_id,omitempty"`

	User  User        `json:"-"`
	Sale  Sale        `json:"sale,omitempty"`
	Lines []OrderLine `gorm:"foreignKey:order_id" json:"lines,omitempty"`

	types.Timestamps
}

// OrderLine is an (order, item, quantity) entry. Immutable once the
// order has left ONGOING, except for deletion through cancellation.
type OrderLine struct {
	ID       uint `gorm:"primarykey" json:"id"`
	OrderID  uint `json:"order_id,omitempty"`
	ItemID   uint `json:"item_id,omitempty"`
	Quantity uint `json:"quantity"`

	Order Order `json:"-"`
	Item  Item  `json:"item,omitempty"`

	types.Timestamps
}
