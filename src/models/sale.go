package models

import (
	"time"
	"tix/src/types"
)

// Sale is a time-boxed selling campaign. A nil MaxQuantity means the
// sale as a whole is uncapped; item and group caps still apply.
type Sale struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `json:"name,omitempty"`
	Slug        string    `gorm:"uniqueIndex" json:"slug,omitempty"`
	Description *string   `json:"description,omitempty"`
	Active      bool      `json:"active"`
	Visible     bool      `json:"visible"`
	BeginAt     time.Time `json:"begin_at,omitempty"`
	EndAt       time.Time `json:"end_at,omitempty"`
	MaxQuantity *uint     `json:"max_quantity,omitempty"`
	OrganizerID uint      `json:"organizer,omitempty"`

	Organizer User        `gorm:"foreignKey:organizer_id" json:"-"`
	Items     []Item      `json:"items,omitempty"`
	Groups    []ItemGroup `json:"groups,omitempty"`

	types.Timestamps
}

// IsOpen reports whether orders may be validated against the sale at
// the given instant.
func (s *Sale) IsOpen(now time.Time) bool {
	if !s.Active {
		return false
	}
	return !now.Before(s.BeginAt) && !now.After(s.EndAt)
}
