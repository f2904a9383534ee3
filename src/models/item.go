package models

import (
	"tix/src/types"

	"github.com/shopspring/decimal"
)

// ItemGroup clusters items that share a combined quantity cap and a
// per-user cap. Caps are nil when unlimited.
type ItemGroup struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	SaleID     uint   `json:"sale_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Quantity   *uint  `json:"quantity,omitempty"`
	MaxPerUser *uint  `json:"max_per_user,omitempty"`

	Sale  Sale   `json:"-"`
	Items []Item `gorm:"foreignKey:group_id" json:"items,omitempty"`

	types.Timestamps
}

// Item is a sellable unit. It belongs to exactly one sale and at most
// one group, and carries its own optional caps plus the eligibility
// rule gating who may buy it.
type Item struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	SaleID     uint            `json:"sale_id,omitempty"`
	GroupID    *uint           `json:"group_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Active     bool            `json:"active"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	Currency   string          `gorm:"default:'eur'" json:"currency,omitempty"`
	UserTypeID uint            `json:"user_type_id,omitempty"`
	Quantity   *uint           `json:"quantity,omitempty"`
	MaxPerUser *uint           `json:"max_per_user,omitempty"`

	Sale     Sale        `json:"-"`
	Group    *ItemGroup  `gorm:"foreignKey:group_id" json:"group,omitempty"`
	UserType UserType    `json:"user_type,omitempty"`
	Fields   []ItemField `gorm:"foreignKey:item_id" json:"fields,omitempty"`

	types.Timestamps
}

// Field is a named attribute organizers may bind to items, e.g. an
// attendee name printed on the ticket.
type Field struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `json:"name,omitempty"`
	Kind string `gorm:"default:'text'" json:"kind,omitempty"`

	types.Timestamps
}

// ItemField binds a field to an item. Default is a template rendered
// into each generated ticket; buyers may overwrite the value afterwards
// only when Editable is set.
type ItemField struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	ItemID   uint   `json:"item_id,omitempty"`
	FieldID  uint   `json:"field_id,omitempty"`
	Editable bool   `json:"editable"`
	Default  string `json:"default,omitempty"`

	Field Field `json:"field,omitempty"`

	types.Timestamps
}
