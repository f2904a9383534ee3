package models

import (
	"tix/src/types"

	"github.com/google/uuid"
)

// OrderLineItem is one individually-identified ticket for one purchased
// unit. Only the ticket materializer creates these, exactly once per
// unit; rows are never regenerated or mutated afterwards.
type OrderLineItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OrderLineID uint      `json:"order_line_id,omitempty"`
	Identifier  uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"identifier"`

	OrderLine OrderLine        `json:"-"`
	Fields    []OrderLineField `gorm:"foreignKey:order_line_item_id" json:"fields,omitempty"`

	types.Timestamps
}

// OrderLineField is a named attribute value attached to one ticket.
// Editable only while the item's field binding allows it.
type OrderLineField struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	OrderLineItemID uint   `json:"order_line_item_id,omitempty"`
	FieldID         uint   `json:"field_id,omitempty"`
	Value           string `json:"value"`

	OrderLineItem OrderLineItem `json:"-"`
	Field         Field         `json:"field,omitempty"`

	types.Timestamps
}
