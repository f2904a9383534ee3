package common

import (
	"errors"
	"fmt"
	"strings"

	"tix/src/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvariant marks programmer errors: the operation aborts and
// persisted state is left unchanged.
var ErrInvariant = errors.New("invariant violation")

// MaterializeTickets creates the missing OrderLineItems for a
// validated order: per line, quantity minus the tickets that already
// exist, so a repeated or concurrent invocation tops up to the exact
// count and never duplicates. Each new ticket gets one OrderLineField
// per field bound to its item, rendered from the binding's default
// template. Runs inside the caller's transaction; callers serialize
// through the sale lock.
func MaterializeTickets(tx *gorm.DB, order *models.Order) (int, error) {
	if !order.Status.IsValidatedFamily() {
		return 0, fmt.Errorf("%w: cannot materialize tickets for %s order %d", ErrInvariant, order.Status, order.ID)
	}

	var user models.User
	if err := tx.First(&user, order.UserID).Error; err != nil {
		return 0, fmt.Errorf("error loading user %d: %w", order.UserID, err)
	}

	var lines []models.OrderLine
	err := tx.
		Where(&models.OrderLine{OrderID: order.ID}).
		Preload("Item").
		Preload("Item.Fields").
		Preload("Item.Fields.Field").
		Find(&lines).
		Error
	if err != nil {
		return 0, fmt.Errorf("error loading order lines: %w", err)
	}

	created := 0
	for _, line := range lines {
		var existing int64
		err := tx.
			Model(&models.OrderLineItem{}).
			Where("order_line_id = ?", line.ID).
			Count(&existing).
			Error
		if err != nil {
			return 0, err
		}
		for i := existing; i < int64(line.Quantity); i++ {
			ticket := models.OrderLineItem{
				OrderLineID: line.ID,
				Identifier:  uuid.New(),
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return 0, fmt.Errorf("error creating ticket for line %d: %w", line.ID, err)
			}
			for _, binding := range line.Item.Fields {
				field := models.OrderLineField{
					OrderLineItemID: ticket.ID,
					FieldID:         binding.FieldID,
					Value:           renderFieldDefault(binding.Default, &user),
				}
				if err := tx.Create(&field).Error; err != nil {
					return 0, fmt.Errorf("error creating field %d for ticket %s: %w", binding.FieldID, ticket.Identifier, err)
				}
			}
			created++
		}
	}
	return created, nil
}

// renderFieldDefault fills buyer placeholders into a field default
// template, e.g. "{first_name} {last_name}".
func renderFieldDefault(template string, user *models.User) string {
	r := strings.NewReplacer(
		"{first_name}", user.FirstName,
		"{last_name}", user.LastName,
		"{name}", user.Name,
		"{email}", user.Email,
	)
	return r.Replace(template)
}
