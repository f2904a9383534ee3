package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ValidateOrder runs the sale, order and quantity checks against an
// order and returns the accumulated violation messages. An empty slice
// means the order may proceed to payment. The non-nil error is for
// infrastructure failures only, never for violations.
//
// Quantity sums are read through the aggregator inside the caller's
// transaction; callers that intend to act on the verdict must hold the
// sale reservation lock so the read and the subsequent write are one
// atomic step.
func ValidateOrder(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) ([]string, error) {
	violations := []string{}

	var sale models.Sale
	if err := tx.First(&sale, order.SaleID).Error; err != nil {
		return nil, fmt.Errorf("error loading sale %d: %w", order.SaleID, err)
	}

	// Sale check
	if !sale.IsOpen(now) {
		if !sale.Active {
			violations = append(violations, fmt.Sprintf("sale %q is not active", sale.Name))
		}
		if now.Before(sale.BeginAt) {
			violations = append(violations, fmt.Sprintf("sale %q has not started yet", sale.Name))
		} else if now.After(sale.EndAt) {
			violations = append(violations, fmt.Sprintf("sale %q is over", sale.Name))
		}
	}

	// Order check
	if !order.Status.IsBuyable() {
		violations = append(violations, fmt.Sprintf("order is %s and can no longer be bought", order.Status))
	}
	var pending int64
	err := tx.
		Model(&models.Order{}).
		Where("user_id = ? AND sale_id = ? AND id <> ?", order.UserID, order.SaleID, order.ID).
		Where("status IN ?", statusStrings(types.NonTerminalStatuses)).
		Count(&pending).
		Error
	if err != nil {
		return nil, fmt.Errorf("error counting pending orders: %w", err)
	}
	if pending > 0 {
		violations = append(violations, "user already has a pending order for this sale")
	}

	var lines []models.OrderLine
	err = tx.
		Where(&models.OrderLine{OrderID: order.ID}).
		Preload("Item").
		Preload("Item.UserType").
		Preload("Item.Group").
		Find(&lines).
		Error
	if err != nil {
		return nil, fmt.Errorf("error loading order lines: %w", err)
	}

	violations = append(violations, checkEligibility(ctx, order, lines)...)

	quantityViolations, err := checkQuantities(tx, order, &sale, lines)
	if err != nil {
		return nil, err
	}
	violations = append(violations, quantityViolations...)

	return violations, nil
}

// ValidateOrderStrict is the strict-mode variant: the first violation
// is returned as an error.
func ValidateOrderStrict(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	violations, err := ValidateOrder(ctx, tx, order, now)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return errors.New(violations[0])
	}
	return nil
}

// checkEligibility verifies every line's item against the buyer's
// profile. Profile fetch failures and incomplete attributes are
// violations, not passes: eligibility fails closed.
func checkEligibility(ctx context.Context, order *models.Order, lines []models.OrderLine) []string {
	violations := []string{}
	if len(lines) == 0 {
		return violations
	}

	profile, err := lib.GetProfileSource().FetchProfile(ctx, order.UserID)
	if err != nil {
		return append(violations, "could not verify eligibility for this user")
	}

	for _, line := range lines {
		if line.Item.SaleID != order.SaleID {
			violations = append(violations, fmt.Sprintf("item %q does not belong to this sale", line.Item.Name))
			continue
		}
		if !line.Item.Active {
			violations = append(violations, fmt.Sprintf("item %q is not on sale", line.Item.Name))
		}
		ok, err := line.Item.UserType.Rule.Accepts(profile)
		if err != nil {
			violations = append(violations, fmt.Sprintf("could not verify eligibility for item %q", line.Item.Name))
			continue
		}
		if !ok {
			violations = append(violations, fmt.Sprintf("user is not allowed to purchase item %q", line.Item.Name))
		}
	}
	return violations
}

// checkQuantities enforces the caps at sale level, then per distinct
// item, then per distinct group. A nil cap means unlimited and is never
// read as zero; sitting exactly at a cap is allowed.
func checkQuantities(tx *gorm.DB, order *models.Order, sale *models.Sale, lines []models.OrderLine) ([]string, error) {
	violations := []string{}

	var total uint
	requestedByItem := map[uint]uint{}
	requestedByGroup := map[uint]uint{}
	for _, line := range lines {
		total += line.Quantity
		requestedByItem[line.ItemID] += line.Quantity
		if line.Item.GroupID != nil {
			requestedByGroup[*line.Item.GroupID] += line.Quantity
		}
	}

	if total == 0 {
		violations = append(violations, "order has no items")
	}

	if sale.MaxQuantity != nil {
		q, err := SaleQuantities(tx, sale.ID, order.ID, order.UserID)
		if err != nil {
			return nil, err
		}
		if q.Booked+total > *sale.MaxQuantity {
			violations = append(violations, fmt.Sprintf("not enough items available for sale %q", sale.Name))
		}
	}

	itemIDs := lo.Uniq(lo.Map(lines, func(l models.OrderLine, _ int) uint { return l.ItemID }))
	for _, itemID := range itemIDs {
		item, ok := lo.Find(lines, func(l models.OrderLine) bool { return l.ItemID == itemID })
		if !ok {
			continue
		}
		if item.Item.Quantity == nil && item.Item.MaxPerUser == nil {
			continue
		}
		q, err := ItemQuantities(tx, sale.ID, itemID, order.ID, order.UserID)
		if err != nil {
			return nil, err
		}
		requested := requestedByItem[itemID]
		if item.Item.Quantity != nil && q.Booked+requested > *item.Item.Quantity {
			violations = append(violations, fmt.Sprintf("not enough items %q available", item.Item.Name))
		}
		if item.Item.MaxPerUser != nil && q.Own+requested > *item.Item.MaxPerUser {
			violations = append(violations, fmt.Sprintf("too many items %q for this user", item.Item.Name))
		}
	}

	groupIDs := lo.Keys(requestedByGroup)
	for _, groupID := range groupIDs {
		line, ok := lo.Find(lines, func(l models.OrderLine) bool {
			return l.Item.GroupID != nil && *l.Item.GroupID == groupID
		})
		if !ok || line.Item.Group == nil {
			continue
		}
		group := line.Item.Group
		if group.Quantity == nil && group.MaxPerUser == nil {
			continue
		}
		q, err := GroupQuantities(tx, sale.ID, groupID, order.ID, order.UserID)
		if err != nil {
			return nil, err
		}
		requested := requestedByGroup[groupID]
		if group.Quantity != nil && q.Booked+requested > *group.Quantity {
			violations = append(violations, fmt.Sprintf("not enough items available in group %q", group.Name))
		}
		if group.MaxPerUser != nil && q.Own+requested > *group.MaxPerUser {
			violations = append(violations, fmt.Sprintf("too many items in group %q for this user", group.Name))
		}
	}

	return violations, nil
}
