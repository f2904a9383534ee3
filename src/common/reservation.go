package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tix/src/db"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
)

// saleLocks holds one mutex per sale id. Reservations and payment
// callbacks for the same sale are linearized through it; unrelated
// sales never serialize against each other. The quantity aggregation
// and the status write both happen under the lock, inside one
// transaction, which closes the read-then-act race for the last unit.
var saleLocks sync.Map

func lockSale(saleID uint) func() {
	mu, _ := saleLocks.LoadOrStore(saleID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// ReserveResult is the reservation gate verdict. A rejected order keeps
// its previous status; Violations carries the user-facing reasons.
type ReserveResult struct {
	OK         bool              `json:"ok"`
	Status     types.OrderStatus `json:"status"`
	Violations []string          `json:"violations,omitempty"`
}

var ErrOrderNotFound = errors.New("order not found")

// Reserve takes a validated intent to the AWAITING_PAYMENT status. N
// concurrent calls competing for the last M units admit exactly M
// orders: the validator re-reads the booked sums under the sale lock,
// inside the same transaction that persists the transition.
func Reserve(ctx context.Context, orderID uint, now time.Time) (ReserveResult, error) {
	conn := db.GetDb()

	var probe models.Order
	if err := conn.First(&probe, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReserveResult{}, ErrOrderNotFound
		}
		return ReserveResult{}, err
	}

	unlock := lockSale(probe.SaleID)
	defer unlock()

	var result ReserveResult
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if _, err := ExpireIfStale(tx, &order, now); err != nil {
			return err
		}
		if order.Status == types.ORDER_AWAITING_PAYMENT {
			// Reservation already holds; nothing to redo.
			result = ReserveResult{OK: true, Status: order.Status}
			return nil
		}

		violations, err := ValidateOrder(ctx, tx, &order, now)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			result = ReserveResult{OK: false, Status: order.Status, Violations: violations}
			return nil
		}

		if err := TransitionOrder(tx, &order, types.ORDER_AWAITING_PAYMENT); err != nil {
			return err
		}
		result = ReserveResult{OK: true, Status: order.Status}
		return nil
	})
	if err != nil {
		return ReserveResult{}, err
	}
	return result, nil
}

// ReleaseReservation reverts an AWAITING_PAYMENT order to ONGOING,
// used when the gateway could not open a transaction after the gate
// admitted the order. The reservation must not silently persist.
func ReleaseReservation(orderID uint) error {
	conn := db.GetDb()

	var probe models.Order
	if err := conn.First(&probe, orderID).Error; err != nil {
		return err
	}

	unlock := lockSale(probe.SaleID)
	defer unlock()

	return conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != types.ORDER_AWAITING_PAYMENT {
			log.Printf("Order %d is %s, nothing to release\n", order.ID, order.Status)
			return nil
		}
		return TransitionOrder(tx, &order, types.ORDER_ONGOING)
	})
}

// SetOrderTransaction records the gateway transaction reference on a
// reserved order.
func SetOrderTransaction(orderID uint, transactionID string) error {
	conn := db.GetDb()
	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, types.ORDER_AWAITING_PAYMENT).
			Update("transaction_id", transactionID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %d is no longer awaiting payment", orderID)
		}
		return nil
	})
}
