package common

import (
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
)

// Quantities is the aggregator output for one sale, item or group
// level: Booked is the total number of units held by all orders in a
// booking status, Own the subset held by one buyer. The order under
// test is always excluded so validation can add its own requested
// quantities on top.
type Quantities struct {
	Booked uint
	Own    uint
}

// bookedLines scopes order_lines to orders in a booking status on the
// given sale, excluding the order under test. Must run inside the
// caller's transaction so the sums and the subsequent write are atomic.
func bookedLines(tx *gorm.DB, saleID uint, excludeOrderID uint) *gorm.DB {
	return tx.
		Model(&models.OrderLine{}).
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("orders.sale_id = ?", saleID).
		Where("orders.status IN ?", statusStrings(types.BookingStatuses)).
		Where("orders.id <> ?", excludeOrderID)
}

func sumQuantity(q *gorm.DB) (uint, error) {
	var total uint
	err := q.Select("COALESCE(SUM(order_lines.quantity), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SaleQuantities returns booked/own unit counts for a whole sale.
func SaleQuantities(tx *gorm.DB, saleID, excludeOrderID, userID uint) (Quantities, error) {
	booked, err := sumQuantity(bookedLines(tx, saleID, excludeOrderID))
	if err != nil {
		return Quantities{}, err
	}
	own, err := sumQuantity(bookedLines(tx, saleID, excludeOrderID).
		Where("orders.user_id = ?", userID))
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Booked: booked, Own: own}, nil
}

// ItemQuantities returns booked/own unit counts for a single item.
func ItemQuantities(tx *gorm.DB, saleID, itemID, excludeOrderID, userID uint) (Quantities, error) {
	booked, err := sumQuantity(bookedLines(tx, saleID, excludeOrderID).
		Where("order_lines.item_id = ?", itemID))
	if err != nil {
		return Quantities{}, err
	}
	own, err := sumQuantity(bookedLines(tx, saleID, excludeOrderID).
		Where("order_lines.item_id = ?", itemID).
		Where("orders.user_id = ?", userID))
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Booked: booked, Own: own}, nil
}

// GroupQuantities returns booked/own unit counts across all items of a
// group.
func GroupQuantities(tx *gorm.DB, saleID, groupID, excludeOrderID, userID uint) (Quantities, error) {
	grouped := func() *gorm.DB {
		return bookedLines(tx, saleID, excludeOrderID).
			Joins("JOIN items ON items.id = order_lines.item_id").
			Where("items.group_id = ?", groupID)
	}
	booked, err := sumQuantity(grouped())
	if err != nil {
		return Quantities{}, err
	}
	own, err := sumQuantity(grouped().Where("orders.user_id = ?", userID))
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Booked: booked, Own: own}, nil
}

func statusStrings(statuses []types.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
