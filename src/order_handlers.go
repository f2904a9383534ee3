package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"tix/src/common"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func orderHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/orders", func(ctx *gin.Context) {
			var body types.CreateOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			id, err := utils.CreateNewOrder(userId, &body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/orders", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			orders, err := utils.GetOwnOrders(userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": orders, "count": len(orders)})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var order models.Order
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Order{ID: params.ID, UserID: userId}).
					Preload("Lines.Item").
					Preload("Sale").
					First(&order).
					Error; err != nil {
					return err
				}
				_, err := common.ExpireIfStale(tx, &order, time.Now())
				return err
			}); err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "order does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":    order,
				"message": common.StatusMessage(order.Status),
			})
		}).
		GET("/orders/:id/validate", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var violations []string
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var order models.Order
				if err := tx.
					Where(&models.Order{ID: params.ID, UserID: userId}).
					First(&order).
					Error; err != nil {
					return err
				}
				if _, err := common.ExpireIfStale(tx, &order, time.Now()); err != nil {
					return err
				}
				vs, err := common.ValidateOrder(ctx.Request.Context(), tx, &order, time.Now())
				if err != nil {
					return err
				}
				violations = vs
				return nil
			}); err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "order does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"valid":      len(violations) == 0,
				"violations": violations,
			})
		}).
		DELETE("/orders/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var order models.Order
				if err := tx.
					Where(&models.Order{ID: params.ID, UserID: userId}).
					First(&order).
					Error; err != nil {
					return err
				}
				if _, err := common.ExpireIfStale(tx, &order, time.Now()); err != nil {
					return err
				}
				return common.TransitionOrder(tx, &order, types.ORDER_CANCELED)
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/orders/:id/pay", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.PayOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			var order models.Order
			db := db.GetDb()
			if err := db.
				Where(&models.Order{ID: params.ID, UserID: userId}).
				Preload("User").
				Preload("Sale").
				First(&order).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "order does not exist"})
				return
			}

			res, err := common.Reserve(ctx.Request.Context(), order.ID, time.Now())
			if err != nil {
				log.Printf("Reserve failed for order %d: %s\n", order.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !res.OK {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{
					"message":    common.StatusMessage(res.Status),
					"violations": res.Violations,
				})
				return
			}

			amount, currency, err := utils.OrderAmount(db, order.ID)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			gateway := lib.GetPaymentGateway()
			result, err := gateway.CreateTransaction(ctx.Request.Context(), lib.CreateTransactionInput{
				OrderID:     order.ID,
				UserEmail:   order.User.Email,
				Description: order.Sale.Name,
				Amount:      amount,
				Currency:    currency,
				CallbackURL: fmt.Sprintf("%s/api/v1/payments/callback", os.Getenv("API_HOST")),
				ReturnURL:   body.ReturnURL,
			})
			if err != nil {
				log.Printf("Gateway error for order %d: %s\n", order.ID, err.Error())
				if rerr := common.ReleaseReservation(order.ID); rerr != nil {
					log.Printf("Error releasing reservation for order %d: %s\n", order.ID, rerr.Error())
				}
				ctx.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
				return
			}
			if err := common.SetOrderTransaction(order.ID, result.TransactionID); err != nil {
				log.Printf("Error storing transaction for order %d: %s\n", order.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"transaction_id": result.TransactionID,
				"url":            result.RedirectURL,
			})
		}).
		POST("/orders/:id/release", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var order models.Order
			db := db.GetDb()
			if err := db.
				Where(&models.Order{ID: params.ID, UserID: userId}).
				First(&order).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if err := common.ReleaseReservation(order.ID); err != nil {
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
