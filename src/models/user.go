package models

import (
	"tix/src/types"
)

type User struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Email      string          `gorm:"uniqueIndex" json:"email,omitempty"`
	Name       string          `json:"name,omitempty"`
	FirstName  string          `json:"first_name,omitempty"`
	LastName   string          `json:"last_name,omitempty"`
	Admin      bool            `json:"admin,omitempty"`
	UserTypeID *uint           `json:"user_type_id,omitempty"`
	Attributes *types.Metadata `gorm:"type:jsonb" json:"attributes,omitempty"`

	UserType *UserType `json:"user_type,omitempty"`
	Orders   []Order   `gorm:"foreignKey:user_id" json:"orders,omitempty"`

	types.Timestamps
}

// UserType names an eligibility rule. Items reference a UserType; the
// validator evaluates its rule against the buyer's profile.
type UserType struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"uniqueIndex" json:"name,omitempty"`
	Rule Rule   `gorm:"type:jsonb" json:"rule"`

	types.Timestamps
}
