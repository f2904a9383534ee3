package common

import (
	"fmt"
	"time"

	"tix/src/config"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
)

// transitions is the full order lifecycle. Stable statuses have no
// outgoing edges; every attempt to move a stable order is a no-op for
// the gate and the payment callback, and an error for everything else.
var transitions = map[types.OrderStatus][]types.OrderStatus{
	types.ORDER_ONGOING: {
		types.ORDER_AWAITING_VALIDATION,
		types.ORDER_AWAITING_PAYMENT,
		types.ORDER_EXPIRED,
		types.ORDER_CANCELED,
	},
	types.ORDER_AWAITING_VALIDATION: {
		types.ORDER_VALIDATED,
		types.ORDER_PAID,
		types.ORDER_EXPIRED,
		types.ORDER_CANCELED,
	},
	types.ORDER_AWAITING_PAYMENT: {
		types.ORDER_VALIDATED,
		types.ORDER_PAID,
		types.ORDER_ONGOING,
		types.ORDER_EXPIRED,
		types.ORDER_CANCELED,
	},
}

// CanTransition reports whether the lifecycle allows moving an order
// from one status to another.
func CanTransition(from, to types.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusMessages maps each status directly to its user-facing message.
var statusMessages = map[types.OrderStatus]string{
	types.ORDER_ONGOING:             "Your order is in progress.",
	types.ORDER_AWAITING_VALIDATION: "Your order awaits validation by an organizer.",
	types.ORDER_AWAITING_PAYMENT:    "Your order awaits payment.",
	types.ORDER_VALIDATED:           "Your order has been validated.",
	types.ORDER_PAID:                "Your order has been paid.",
	types.ORDER_EXPIRED:             "Your order has expired.",
	types.ORDER_CANCELED:            "Your order has been canceled.",
}

func StatusMessage(s types.OrderStatus) string {
	msg, ok := statusMessages[s]
	if !ok {
		return "Unknown order status."
	}
	return msg
}

// ExpiryDeadline returns the instant after which the order's current
// status lapses, or the zero time for statuses that never expire on
// their own.
func ExpiryDeadline(order *models.Order) time.Time {
	switch order.Status {
	case types.ORDER_ONGOING:
		return order.CreatedAt.Add(config.OngoingWindow())
	case types.ORDER_AWAITING_PAYMENT:
		return order.CreatedAt.Add(config.PaymentWindow())
	case types.ORDER_AWAITING_VALIDATION:
		return order.CreatedAt.Add(config.ValidationWindow())
	}
	return time.Time{}
}

// ExpireIfStale lazily expires an order whose window has lapsed. Called
// before honoring any state-changing request; no background sweep is
// needed for correctness since the aggregator recomputes booked counts
// from current statuses.
func ExpireIfStale(tx *gorm.DB, order *models.Order, now time.Time) (bool, error) {
	if order.Status.IsStable() {
		return false, nil
	}
	deadline := ExpiryDeadline(order)
	if deadline.IsZero() || now.Before(deadline) {
		return false, nil
	}
	res := tx.
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Update("status", types.ORDER_EXPIRED)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a race with another writer; reload and let the caller
		// re-evaluate against the fresh status.
		if err := tx.First(order, order.ID).Error; err != nil {
			return false, err
		}
		return order.Status == types.ORDER_EXPIRED, nil
	}
	order.Status = types.ORDER_EXPIRED
	return true, nil
}

// TransitionOrder moves an order to the target status, guarding both
// the lifecycle and concurrent writers: the update only lands if the
// row still holds the status the decision was made against.
func TransitionOrder(tx *gorm.DB, order *models.Order, to types.OrderStatus) error {
	if !CanTransition(order.Status, to) {
		return fmt.Errorf("order %d cannot move from %s to %s", order.ID, order.Status, to)
	}
	res := tx.
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d was modified concurrently", order.ID)
	}
	order.Status = to
	return nil
}
