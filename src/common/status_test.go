package common

import (
	"testing"
	"time"

	"tix/src/config"
	"tix/src/models"
	"tix/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to types.OrderStatus
		want     bool
	}{
		{types.ORDER_ONGOING, types.ORDER_AWAITING_PAYMENT, true},
		{types.ORDER_ONGOING, types.ORDER_AWAITING_VALIDATION, true},
		{types.ORDER_ONGOING, types.ORDER_CANCELED, true},
		{types.ORDER_ONGOING, types.ORDER_PAID, false},
		{types.ORDER_AWAITING_PAYMENT, types.ORDER_PAID, true},
		{types.ORDER_AWAITING_PAYMENT, types.ORDER_ONGOING, true},
		{types.ORDER_AWAITING_VALIDATION, types.ORDER_VALIDATED, true},
		{types.ORDER_AWAITING_VALIDATION, types.ORDER_ONGOING, false},
		{types.ORDER_PAID, types.ORDER_ONGOING, false},
		{types.ORDER_EXPIRED, types.ORDER_ONGOING, false},
		{types.ORDER_CANCELED, types.ORDER_CANCELED, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Your order has been paid.", StatusMessage(types.ORDER_PAID))
	assert.Equal(t, "Your order has expired.", StatusMessage(types.ORDER_EXPIRED))
	assert.Equal(t, "Unknown order status.", StatusMessage(types.OrderStatus("bogus")))
}

func TestExpiryDeadline(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{Status: types.ORDER_ONGOING}
	order.CreatedAt = created
	assert.Equal(t, created.Add(config.OngoingWindow()), ExpiryDeadline(order))

	order.Status = types.ORDER_AWAITING_PAYMENT
	assert.Equal(t, created.Add(config.PaymentWindow()), ExpiryDeadline(order))

	order.Status = types.ORDER_AWAITING_VALIDATION
	assert.Equal(t, created.Add(config.ValidationWindow()), ExpiryDeadline(order))

	order.Status = types.ORDER_PAID
	assert.True(t, ExpiryDeadline(order).IsZero())
}

func TestExpireIfStale(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, nil, nil)

	fresh := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	expired, err := ExpireIfStale(conn, &fresh, time.Now())
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, types.ORDER_ONGOING, fresh.Status)

	stale := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	backdate(t, conn, stale.ID, time.Now().Add(-config.OngoingWindow()-time.Minute))
	stale.CreatedAt = time.Now().Add(-config.OngoingWindow() - time.Minute)
	expired, err = ExpireIfStale(conn, &stale, time.Now())
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, types.ORDER_EXPIRED, stale.Status)

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, stale.ID).Error)
	assert.Equal(t, types.ORDER_EXPIRED, reloaded.Status)

	// Stable orders are never touched, however old.
	paid := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_PAID, lineInput{item.ID, 1})
	backdate(t, conn, paid.ID, time.Now().Add(-48*time.Hour))
	paid.CreatedAt = time.Now().Add(-48 * time.Hour)
	expired, err = ExpireIfStale(conn, &paid, time.Now())
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, types.ORDER_PAID, paid.Status)
}

func TestTransitionOrderGuardsConcurrentWriters(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, nil, nil)
	order := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})

	require.Error(t, TransitionOrder(conn, &order, types.ORDER_PAID))

	// Another writer flips the row; the stale in-memory copy must not
	// win.
	require.NoError(t, conn.
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", types.ORDER_CANCELED).
		Error)
	err := TransitionOrder(conn, &order, types.ORDER_AWAITING_PAYMENT)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modified concurrently")

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, order.ID).Error)
	assert.Equal(t, types.ORDER_CANCELED, reloaded.Status)
}

func TestSweepExpiredOrders(t *testing.T) {
	conn := newTestDB(t)
	buyer := mkUser(t, conn, "buyer@example.com")
	userType := alwaysType(t, conn)
	sale := mkSale(t, conn, buyer.ID, nil)
	item := mkItem(t, conn, sale.ID, userType.ID, nil, nil)

	stale := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	backdate(t, conn, stale.ID, time.Now().Add(-config.OngoingWindow()-time.Minute))
	fresh := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_ONGOING, lineInput{item.ID, 1})
	paid := mkOrder(t, conn, buyer.ID, sale.ID, types.ORDER_PAID, lineInput{item.ID, 1})

	SweepExpiredOrders(time.Now())

	var statuses []string
	require.NoError(t, conn.
		Model(&models.Order{}).
		Where("id IN ?", []uint{stale.ID, fresh.ID, paid.ID}).
		Order("id").
		Pluck("status", &statuses).
		Error)
	assert.Equal(t, []string{"expired", "ongoing", "paid"}, statuses)
}
