package utils

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tix/src/common"
	"tix/src/config"
	"tix/src/db"
	"tix/src/models"
	"tix/src/types"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func CreateNewSale(params *types.CreateSaleRequestBody, organizerID uint) (uint, error) {
	beginAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.BeginAt)
	if err != nil {
		log.Printf("Error parsing begin_at: %s\n", err.Error())
		return 0, err
	}
	endAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.EndAt)
	if err != nil {
		log.Printf("Error parsing end_at: %s\n", err.Error())
		return 0, err
	}

	sale := models.Sale{
		Name:        params.Name,
		Slug:        slug.Make(params.Name),
		BeginAt:     beginAt,
		EndAt:       endAt,
		MaxQuantity: params.MaxQuantity,
		Active:      params.Active,
		Visible:     params.Visible,
		OrganizerID: organizerID,
	}
	if params.Description != "" {
		sale.Description = &params.Description
	}

	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var organizer models.User
		if err := tx.Where(&models.User{ID: organizerID}).First(&organizer).Error; err != nil {
			return err
		}
		if !organizer.Admin {
			return errors.New("not enough permissions to perform this action")
		}
		return tx.Create(&sale).Error
	})
	if err != nil {
		return 0, err
	}
	return sale.ID, nil
}

func CreateNewItemGroup(saleID uint, params *types.CreateItemGroupRequestBody) (uint, error) {
	group := models.ItemGroup{
		SaleID:     saleID,
		Name:       params.Name,
		Quantity:   params.Quantity,
		MaxPerUser: params.MaxPerUser,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.Where(&models.Sale{ID: saleID}).First(&sale).Error; err != nil {
			return fmt.Errorf("sale %d does not exist", saleID)
		}
		return tx.Create(&group).Error
	})
	if err != nil {
		return 0, err
	}
	return group.ID, nil
}

func CreateNewItem(saleID uint, params *types.CreateItemRequestBody) (uint, error) {
	price, err := decimal.NewFromString(params.Price)
	if err != nil {
		log.Printf("Error parsing price: %s\n", err.Error())
		return 0, err
	}
	item := models.Item{
		SaleID:     saleID,
		GroupID:    params.GroupID,
		Name:       params.Name,
		Price:      price,
		UserTypeID: params.UserTypeID,
		Quantity:   params.Quantity,
		MaxPerUser: params.MaxPerUser,
		Active:     params.Active,
	}

	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.Where(&models.Sale{ID: saleID}).First(&sale).Error; err != nil {
			return fmt.Errorf("sale %d does not exist", saleID)
		}
		if params.GroupID != nil {
			var group models.ItemGroup
			if err := tx.Where(&models.ItemGroup{ID: *params.GroupID}).First(&group).Error; err != nil {
				return fmt.Errorf("group %d does not exist", *params.GroupID)
			}
			if group.SaleID != saleID {
				return errors.New("group belongs to another sale")
			}
		}
		var userType models.UserType
		if err := tx.Where(&models.UserType{ID: params.UserTypeID}).First(&userType).Error; err != nil {
			return fmt.Errorf("user type %d does not exist", params.UserTypeID)
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		for _, fieldId := range params.Fields {
			var field models.Field
			if err := tx.Where(&models.Field{ID: fieldId}).First(&field).Error; err != nil {
				return fmt.Errorf("field %d does not exist", fieldId)
			}
			binding := models.ItemField{
				ItemID:  item.ID,
				FieldID: fieldId,
			}
			if err := tx.Create(&binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Println("Error: ", err.Error())
		return 0, err
	}
	return item.ID, nil
}

// SaleStats is the organizer-facing availability snapshot. Free is nil
// when the corresponding cap is nil.
type SaleStats struct {
	Booked uint        `json:"booked"`
	Free   *uint       `json:"free,omitempty"`
	Items  []ItemStats `json:"items,omitempty"`
}

type ItemStats struct {
	ItemID uint  `json:"item_id"`
	Booked uint  `json:"booked"`
	Free   *uint `json:"free,omitempty"`
}

// freeCount reports remaining capacity, clamped at zero in case a cap
// was lowered below what is already booked.
func freeCount(max *uint, booked uint) *uint {
	if max == nil {
		return nil
	}
	free := uint(0)
	if booked < *max {
		free = *max - booked
	}
	return &free
}

func GetSaleStats(id uint) (*SaleStats, error) {
	db := db.GetDb()
	var stats SaleStats
	err := db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.Where(&models.Sale{ID: id}).Preload("Items").First(&sale).Error; err != nil {
			return errors.New("sale not found")
		}
		saleQty, err := common.SaleQuantities(tx, id, 0, 0)
		if err != nil {
			return err
		}
		stats.Booked = saleQty.Booked
		stats.Free = freeCount(sale.MaxQuantity, saleQty.Booked)
		for _, item := range sale.Items {
			itemQty, err := common.ItemQuantities(tx, id, item.ID, 0, 0)
			if err != nil {
				return err
			}
			is := ItemStats{ItemID: item.ID, Booked: itemQty.Booked}
			is.Free = freeCount(item.Quantity, itemQty.Booked)
			stats.Items = append(stats.Items, is)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func CreateNewOrder(userID uint, params *types.CreateOrderRequestBody) (uint, error) {
	db := db.GetDb()
	var orderId uint
	err := db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.Where(&models.Sale{ID: params.SaleID}).First(&sale).Error; err != nil {
			return fmt.Errorf("sale %d does not exist", params.SaleID)
		}
		var open int64
		if err := tx.
			Model(&models.Order{}).
			Where("user_id = ? AND sale_id = ?", userID, params.SaleID).
			Where("status IN ?", statusStrings(types.NonTerminalStatuses)).
			Count(&open).
			Error; err != nil {
			return err
		}
		if open > 0 {
			return errors.New("user already has an open order for this sale")
		}

		items := lo.Map(params.Items, func(v types.OrderLineInput, _ int) uint { return v.ItemID })
		if len(lo.Uniq(items)) != len(items) {
			return errors.New("duplicate items in order")
		}
		order := models.Order{
			UserID: userID,
			SaleID: params.SaleID,
			Status: types.ORDER_ONGOING,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, v := range params.Items {
			if v.Quantity < 1 {
				return fmt.Errorf("invalid quantity for item %d", v.ItemID)
			}
			var item models.Item
			if err := tx.Where(&models.Item{ID: v.ItemID}).First(&item).Error; err != nil {
				return fmt.Errorf("item %d does not exist", v.ItemID)
			}
			if item.SaleID != params.SaleID {
				return fmt.Errorf("item %d belongs to another sale", v.ItemID)
			}
			line := models.OrderLine{
				OrderID:  order.ID,
				ItemID:   v.ItemID,
				Quantity: v.Quantity,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}
		orderId = order.ID
		return nil
	})
	if err != nil {
		log.Printf("CreateNewOrder failed: %s\n", err.Error())
		return 0, err
	}
	return orderId, nil
}

// OrderAmount sums line quantities times item prices.
func OrderAmount(tx *gorm.DB, orderID uint) (decimal.Decimal, string, error) {
	var lines []models.OrderLine
	if err := tx.
		Where(&models.OrderLine{OrderID: orderID}).
		Preload("Item").
		Find(&lines).
		Error; err != nil {
		return decimal.Zero, "", err
	}
	amount := decimal.Zero
	currency := "eur"
	for _, line := range lines {
		amount = amount.Add(line.Item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		currency = line.Item.Currency
	}
	return amount, currency, nil
}

func GetOwnOrders(userID uint) ([]models.Order, error) {
	db := db.GetDb()
	var orders []models.Order
	err := db.
		Model(&models.Order{}).
		Where(&models.Order{UserID: userID}).
		Preload("Lines.Item").
		Preload("Sale").
		Order("created_at DESC").
		Limit(20).
		Find(&orders).
		Error
	return orders, err
}

func GetOwnTickets(userID uint) ([]models.OrderLineItem, error) {
	db := db.GetDb()
	var tickets []models.OrderLineItem
	err := db.
		Model(&models.OrderLineItem{}).
		Joins("JOIN order_lines ON order_lines.id = order_line_items.order_line_id").
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("orders.user_id = ?", userID).
		Preload("Fields.Field").
		Order("order_line_items.created_at DESC").
		Find(&tickets).
		Error
	return tickets, err
}

func statusStrings(statuses []types.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
