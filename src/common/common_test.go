package common

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database and installs it as the
// package singleton. One connection only, so concurrent transactions
// serialize the way the sale lock expects them to.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	inner, err := conn.DB()
	require.NoError(t, err)
	inner.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.UserType{},
		&models.Sale{},
		&models.ItemGroup{},
		&models.Item{},
		&models.Field{},
		&models.ItemField{},
		&models.Order{},
		&models.OrderLine{},
		&models.OrderLineItem{},
		&models.OrderLineField{},
	))
	db.NewDB(conn)
	t.Cleanup(func() { inner.Close() })
	return conn
}

func useProfiles(profiles map[uint]types.Profile) {
	lib.NewProfileSource(&lib.StaticProfileSource{Profiles: profiles})
}

func useProfilesErr(err error) {
	lib.NewProfileSource(&lib.StaticProfileSource{Err: err})
}

func useGateway() *lib.FakeGateway {
	gw := &lib.FakeGateway{Statuses: map[string]types.GatewayStatus{}}
	lib.NewPaymentGateway(gw)
	return gw
}

func uptr(v uint) *uint { return &v }

func mkUser(t *testing.T, conn *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{
		Email:     email,
		Name:      "Test User",
		FirstName: "Test",
		LastName:  "User",
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func mkUserType(t *testing.T, conn *gorm.DB, name string, rule models.Rule) models.UserType {
	t.Helper()
	userType := models.UserType{Name: name, Rule: rule}
	require.NoError(t, conn.Create(&userType).Error)
	return userType
}

func mkSale(t *testing.T, conn *gorm.DB, organizer uint, maxQuantity *uint) models.Sale {
	t.Helper()
	now := time.Now()
	sale := models.Sale{
		Name:        "Spring Sale",
		Slug:        fmt.Sprintf("spring-sale-%d", time.Now().UnixNano()),
		Active:      true,
		Visible:     true,
		BeginAt:     now.Add(-time.Hour),
		EndAt:       now.Add(time.Hour),
		MaxQuantity: maxQuantity,
		OrganizerID: organizer,
	}
	require.NoError(t, conn.Create(&sale).Error)
	return sale
}

func mkGroup(t *testing.T, conn *gorm.DB, saleID uint, quantity, maxPerUser *uint) models.ItemGroup {
	t.Helper()
	group := models.ItemGroup{
		SaleID:     saleID,
		Name:       "Combo",
		Quantity:   quantity,
		MaxPerUser: maxPerUser,
	}
	require.NoError(t, conn.Create(&group).Error)
	return group
}

func mkItem(t *testing.T, conn *gorm.DB, saleID, userTypeID uint, quantity, maxPerUser *uint) models.Item {
	t.Helper()
	item := models.Item{
		SaleID:     saleID,
		Name:       fmt.Sprintf("Ticket %d", time.Now().UnixNano()),
		Active:     true,
		Currency:   "eur",
		UserTypeID: userTypeID,
		Quantity:   quantity,
		MaxPerUser: maxPerUser,
	}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

type lineInput struct {
	itemID   uint
	quantity uint
}

func mkOrder(t *testing.T, conn *gorm.DB, userID, saleID uint, status types.OrderStatus, lines ...lineInput) models.Order {
	t.Helper()
	order := models.Order{
		UserID: userID,
		SaleID: saleID,
		Status: status,
	}
	require.NoError(t, conn.Create(&order).Error)
	for _, l := range lines {
		line := models.OrderLine{
			OrderID:  order.ID,
			ItemID:   l.itemID,
			Quantity: l.quantity,
		}
		require.NoError(t, conn.Create(&line).Error)
	}
	return order
}

// backdate rewrites an order's creation instant so expiry windows can
// be exercised without sleeping.
func backdate(t *testing.T, conn *gorm.DB, orderID uint, createdAt time.Time) {
	t.Helper()
	require.NoError(t, conn.
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("created_at", createdAt).
		Error)
}

// alwaysType is the common case: an item anyone may buy.
func alwaysType(t *testing.T, conn *gorm.DB) models.UserType {
	return mkUserType(t, conn, fmt.Sprintf("everyone-%d", time.Now().UnixNano()), models.Rule{Kind: models.RULE_ALWAYS})
}

func profileFor(user models.User) types.Profile {
	return types.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
