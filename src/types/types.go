package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("type assertion to []byte failed")
		}
		b = []byte(s)
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

// OrderStatus is the order lifecycle state. ONGOING is the open cart;
// the AWAITING_* statuses hold stock; VALIDATED/PAID/EXPIRED/CANCELED
// are stable and never transition again.
type OrderStatus string

const (
	ORDER_ONGOING             OrderStatus = "ongoing"
	ORDER_AWAITING_VALIDATION OrderStatus = "awaiting_validation"
	ORDER_AWAITING_PAYMENT    OrderStatus = "awaiting_payment"
	ORDER_VALIDATED           OrderStatus = "validated"
	ORDER_PAID                OrderStatus = "paid"
	ORDER_EXPIRED             OrderStatus = "expired"
	ORDER_CANCELED            OrderStatus = "canceled"
)

// BuyableStatuses are the statuses an order may hold while it is still
// allowed to go through checkout.
var BuyableStatuses = []OrderStatus{
	ORDER_ONGOING,
	ORDER_AWAITING_VALIDATION,
	ORDER_AWAITING_PAYMENT,
}

// BookingStatuses are the statuses that count against sale, item and
// group quantity caps.
var BookingStatuses = []OrderStatus{
	ORDER_AWAITING_VALIDATION,
	ORDER_VALIDATED,
	ORDER_AWAITING_PAYMENT,
	ORDER_PAID,
}

// NonTerminalStatuses are the statuses of an order a user still has in
// flight. A user may only have one such order per sale.
var NonTerminalStatuses = []OrderStatus{
	ORDER_ONGOING,
	ORDER_AWAITING_VALIDATION,
	ORDER_AWAITING_PAYMENT,
}

func (s OrderStatus) IsStable() bool {
	switch s {
	case ORDER_VALIDATED, ORDER_PAID, ORDER_EXPIRED, ORDER_CANCELED:
		return true
	}
	return false
}

func (s OrderStatus) IsBuyable() bool {
	for _, b := range BuyableStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsBooking() bool {
	for _, b := range BookingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// IsValidatedFamily reports whether the status entitles the order to
// materialized tickets.
func (s OrderStatus) IsValidatedFamily() bool {
	return s == ORDER_VALIDATED || s == ORDER_PAID
}

type GatewayStatus string

const (
	GATEWAY_PAID     GatewayStatus = "paid"
	GATEWAY_AWAITING GatewayStatus = "awaiting"
	GATEWAY_FAILED   GatewayStatus = "failed"
	GATEWAY_CANCELED GatewayStatus = "canceled"
)

// Profile holds the buyer attributes eligibility rules evaluate against.
// Attributes come from the membership directory and may be incomplete;
// rules must treat a missing attribute as a refusal.
type Profile struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Admin      bool   `json:"admin,omitempty"`
	Attributes JSONB  `json:"attributes,omitempty"`
}

type CreateSaleRequestBody struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	BeginAt     string `json:"begin_at" binding:"required,saledate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndAt       string `json:"end_at" binding:"required,saledate,gtdate=BeginAt" time_format:"2006-01-02 15:04:05 -07:00"`
	MaxQuantity *uint  `json:"max_quantity,omitempty"`
	Active      bool   `json:"active,omitempty"`
	Visible     bool   `json:"visible,omitempty"`
}

type UpdateSaleRequestBody struct {
	Active  *bool `json:"active,omitempty"`
	Visible *bool `json:"visible,omitempty"`
}

type CreateItemGroupRequestBody struct {
	Name       string `json:"name" binding:"required"`
	Quantity   *uint  `json:"quantity,omitempty"`
	MaxPerUser *uint  `json:"max_per_user,omitempty"`
}

type CreateItemRequestBody struct {
	Name       string `json:"name" binding:"required"`
	Price      string `json:"price" binding:"required"`
	GroupID    *uint  `json:"group,omitempty"`
	UserTypeID uint   `json:"user_type" binding:"required"`
	Quantity   *uint  `json:"quantity,omitempty"`
	MaxPerUser *uint  `json:"max_per_user,omitempty"`
	Active     bool   `json:"active,omitempty"`
	Fields     []uint `json:"fields,omitempty"`
}

type OrderLineInput struct {
	ItemID   uint `json:"item" binding:"required"`
	Quantity uint `json:"quantity" binding:"required"`
}

type CreateOrderRequestBody struct {
	SaleID uint             `json:"sale" binding:"required"`
	Items  []OrderLineInput `json:"items" binding:"required,min=1"`
}

type PayOrderRequestBody struct {
	ReturnURL string `json:"return_url" binding:"required"`
}

type UpdateTicketFieldRequestBody struct {
	Value string `json:"value" binding:"required"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type TicketFieldURIParams struct {
	TicketID uint `uri:"id" binding:"required"`
	FieldID  uint `uri:"fieldId" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)
