package main

import (
	"errors"
	"net/http"

	"tix/src/db"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			tickets, err := utils.GetOwnTickets(userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets, "count": len(tickets)})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var ticket models.OrderLineItem
			db := db.GetDb()
			if err := db.
				Model(&models.OrderLineItem{}).
				Joins("JOIN order_lines ON order_lines.id = order_line_items.order_line_id").
				Joins("JOIN orders ON orders.id = order_lines.order_id").
				Where("order_line_items.id = ? AND orders.user_id = ?", params.ID, userId).
				Preload("Fields.Field").
				First(&ticket).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "ticket does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		PATCH("/tickets/:id/fields/:fieldId", func(ctx *gin.Context) {
			var params types.TicketFieldURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateTicketFieldRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var line models.OrderLine
				if err := tx.
					Model(&models.OrderLine{}).
					Joins("JOIN order_line_items ON order_line_items.order_line_id = order_lines.id").
					Joins("JOIN orders ON orders.id = order_lines.order_id").
					Where("order_line_items.id = ? AND orders.user_id = ?", params.TicketID, userId).
					First(&line).
					Error; err != nil {
					return err
				}
				var binding models.ItemField
				if err := tx.
					Where(&models.ItemField{ItemID: line.ItemID, FieldID: params.FieldID}).
					First(&binding).
					Error; err != nil {
					return err
				}
				if !binding.Editable {
					return errors.New("field is not editable")
				}
				return tx.
					Model(&models.OrderLineField{}).
					Where(&models.OrderLineField{OrderLineItemID: params.TicketID, FieldID: params.FieldID}).
					Update("value", body.Value).
					Error
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
