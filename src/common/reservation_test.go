package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tix/src/models"
	"tix/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAdmitsAndRejects(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	other := mkUser(t, conn, "other@example.com")
	useProfiles(map[uint]types.Profile{
		buyer.ID: profileFor(buyer),
		other.ID: profileFor(other),
	})
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, uptr(1), nil)

	first := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	second := mkOrder(t, conn, other.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})

	res, err := Reserve(context.Background(), first.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, types.ORDER_AWAITING_PAYMENT, res.Status)

	res, err = Reserve(context.Background(), second.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, types.ORDER_ONGOING, res.Status)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0], "not enough items")

	// The rejected order keeps its status.
	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, second.ID).Error)
	assert.Equal(t, types.ORDER_ONGOING, reloaded.Status)
}

func TestReserveIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	useProfiles(map[uint]types.Profile{buyer.ID: profileFor(buyer)})
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, uptr(1), nil)
	order := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})

	res, err := Reserve(context.Background(), order.ID, time.Now())
	require.NoError(t, err)
	require.True(t, res.OK)

	// A replayed call finds the reservation already held and succeeds
	// without re-validating against the caps it now occupies.
	res, err = Reserve(context.Background(), order.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, types.ORDER_AWAITING_PAYMENT, res.Status)
}

func TestReserveUnknownOrder(t *testing.T) {
	newTestDB(t)
	_, err := Reserve(context.Background(), 12345, time.Now())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// Ten buyers race for five units. Exactly five reservations must land,
// regardless of interleaving.
func TestReserveConcurrent(t *testing.T) {
	conn := newTestDB(t)
	userType := alwaysType(t, conn)
	organizer := mkUser(t, conn, "organizer@example.com")
	sale := mkSale(t, conn, organizer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, uptr(5), nil)

	profiles := map[uint]types.Profile{}
	orderIDs := make([]uint, 0, 10)
	for i := 0; i < 10; i++ {
		buyer := mkUser(t, conn, fmt.Sprintf("buyer%d@example.com", i))
		profiles[buyer.ID] = profileFor(buyer)
		order := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
		orderIDs = append(orderIDs, order.ID)
	}
	useProfiles(profiles)

	var wg sync.WaitGroup
	admitted := make(chan uint, len(orderIDs))
	for _, id := range orderIDs {
		wg.Add(1)
		go func(orderID uint) {
			defer wg.Done()
			res, err := Reserve(context.Background(), orderID, time.Now())
			if !assert.NoError(t, err) {
				return
			}
			if res.OK {
				admitted <- orderID
			}
		}(id)
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	assert.Equal(t, 5, count)

	var reserved int64
	require.NoError(t, conn.
		Model(&models.Order{}).
		Where("sale_id = ? AND status = ?", sale.ID, types.ORDER_AWAITING_PAYMENT).
		Count(&reserved).
		Error)
	assert.EqualValues(t, 5, reserved)
}

func TestReleaseReservation(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	useProfiles(map[uint]types.Profile{buyer.ID: profileFor(buyer)})
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, nil, nil)
	order := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_AWAITING_PAYMENT, lineInput{item.ID, 1})

	require.NoError(t, ReleaseReservation(order.ID))

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, order.ID).Error)
	assert.Equal(t, types.ORDER_ONGOING, reloaded.Status)

	// Releasing again is a no-op.
	require.NoError(t, ReleaseReservation(order.ID))
	require.NoError(t, conn.First(&reloaded, order.ID).Error)
	assert.Equal(t, types.ORDER_ONGOING, reloaded.Status)
}

func TestSetOrderTransaction(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, nil, nil)

	reserved := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_AWAITING_PAYMENT, lineInput{item.ID, 1})
	require.NoError(t, SetOrderTransaction(reserved.ID, "txn_1"))

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, reserved.ID).Error)
	require.NotNil(t, reloaded.TransactionID)
	assert.Equal(t, "txn_1", *reloaded.TransactionID)

	ongoing := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	err := SetOrderTransaction(ongoing.ID, "txn_2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer awaiting payment")
}
