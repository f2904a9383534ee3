package common

import (
	"context"
	"errors"
	"log"
	"time"

	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
)

// PaymentOutcome reports what a callback delivery changed. Duplicate
// deliveries for an order already in a stable status return the same
// Status with Updated and TicketsGenerated false.
type PaymentOutcome struct {
	Status           types.OrderStatus `json:"status"`
	Message          string            `json:"message"`
	Updated          bool              `json:"updated"`
	TicketsGenerated bool              `json:"tickets_generated"`
	TicketCount      int               `json:"ticket_count,omitempty"`
}

var ErrNoTransaction = errors.New("order has no transaction")

// ReportPaymentOutcome is the idempotent payment-callback entry point.
// It queries the gateway for the order's transaction status and drives
// the order through the state machine: PAID materializes tickets
// inside the same transaction that flips the status, FAILED/CANCELED
// releases the reservation back to ONGOING. The gateway may deliver
// the callback multiple times, possibly concurrently; the sale lock
// plus the stable-status guard make every redelivery a no-op.
func ReportPaymentOutcome(ctx context.Context, orderID uint, now time.Time) (PaymentOutcome, error) {
	conn := db.GetDb()

	var probe models.Order
	if err := conn.First(&probe, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PaymentOutcome{}, ErrOrderNotFound
		}
		return PaymentOutcome{}, err
	}

	unlock := lockSale(probe.SaleID)
	defer unlock()

	var outcome PaymentOutcome
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status.IsStable() {
			outcome = PaymentOutcome{Status: order.Status, Message: StatusMessage(order.Status)}
			return nil
		}
		if _, err := ExpireIfStale(tx, &order, now); err != nil {
			return err
		}
		if order.Status.IsStable() {
			outcome = PaymentOutcome{Status: order.Status, Message: StatusMessage(order.Status)}
			return nil
		}
		if order.TransactionID == nil {
			return ErrNoTransaction
		}

		gatewayStatus, err := lib.GetPaymentGateway().GetTransactionStatus(ctx, *order.TransactionID)
		if err != nil {
			return err
		}

		switch gatewayStatus {
		case types.GATEWAY_PAID:
			target := types.ORDER_PAID
			if order.Status == types.ORDER_AWAITING_VALIDATION {
				target = types.ORDER_VALIDATED
			}
			if err := TransitionOrder(tx, &order, target); err != nil {
				return err
			}
			count, err := MaterializeTickets(tx, &order)
			if err != nil {
				return err
			}
			outcome = PaymentOutcome{
				Status:           order.Status,
				Message:          StatusMessage(order.Status),
				Updated:          true,
				TicketsGenerated: count > 0,
				TicketCount:      count,
			}
		case types.GATEWAY_FAILED, types.GATEWAY_CANCELED:
			// A failed charge only releases a payment hold. Orders
			// awaiting validation keep their status and stay reservable.
			if order.Status == types.ORDER_AWAITING_PAYMENT {
				if err := TransitionOrder(tx, &order, types.ORDER_ONGOING); err != nil {
					return err
				}
				outcome = PaymentOutcome{
					Status:  order.Status,
					Message: StatusMessage(order.Status),
					Updated: true,
				}
			} else {
				outcome = PaymentOutcome{Status: order.Status, Message: StatusMessage(order.Status)}
			}
		default:
			outcome = PaymentOutcome{Status: order.Status, Message: StatusMessage(order.Status)}
		}
		return nil
	})
	if err != nil {
		return PaymentOutcome{}, err
	}
	return outcome, nil
}

// SweepExpiredOrders marks lapsed non-terminal orders EXPIRED. Pure
// housekeeping: correctness never depends on it, since expiry is also
// checked lazily on every state-changing request and booked counts are
// recomputed from current statuses.
func SweepExpiredOrders(now time.Time) {
	conn := db.GetDb()
	var orders []models.Order
	err := conn.
		Where("status IN ?", statusStrings(types.NonTerminalStatuses)).
		Limit(500).
		Find(&orders).
		Error
	if err != nil {
		log.Printf("Error listing orders for expiry sweep: %s\n", err.Error())
		return
	}
	expired := 0
	for i := range orders {
		order := &orders[i]
		deadline := ExpiryDeadline(order)
		if deadline.IsZero() || now.Before(deadline) {
			continue
		}
		unlock := lockSale(order.SaleID)
		err := conn.Transaction(func(tx *gorm.DB) error {
			done, err := ExpireIfStale(tx, order, now)
			if err != nil {
				return err
			}
			if done {
				expired++
			}
			return nil
		})
		unlock()
		if err != nil {
			log.Printf("Error expiring order %d: %s\n", order.ID, err.Error())
		}
	}
	if expired > 0 {
		log.Printf("Expiry sweep marked %d orders expired\n", expired)
	}
}
