package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"tix/src/common"
	"tix/src/db"
	"tix/src/lib/mailer"
	"tix/src/models"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// paymentCallbackRoute receives the gateway's outcome notifications.
// Deliveries are unauthenticated, may repeat and may race each other;
// everything idempotent lives in common.ReportPaymentOutcome.
func paymentCallbackRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		POST("/payments/callback", func(ctx *gin.Context) {
			payload, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			spayload := string(payload)
			if !gjson.Valid(spayload) {
				log.Println("Invalid callback payload")
				ctx.Status(http.StatusBadRequest)
				return
			}
			val := gjson.Get(spayload, "order_id")
			if !val.Exists() {
				val = gjson.Get(spayload, "data.object.metadata.order_id")
			}
			if !val.Exists() {
				val = gjson.Get(spayload, "data.object.client_reference_id")
			}
			if !val.Exists() {
				log.Println("Callback payload carries no order reference")
				ctx.Status(http.StatusBadRequest)
				return
			}
			orderId := uint(val.Uint())

			outcome, err := common.ReportPaymentOutcome(ctx.Request.Context(), orderId, time.Now())
			if err != nil {
				if errors.Is(err, common.ErrOrderNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				if errors.Is(err, common.ErrNoTransaction) {
					ctx.Status(http.StatusConflict)
					return
				}
				log.Printf("Error processing callback for order %d: %s\n", orderId, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}

			if outcome.TicketsGenerated {
				go func() {
					var order models.Order
					db := db.GetDb()
					if err := db.
						Where(&models.Order{ID: orderId}).
						Preload("User").
						Preload("Sale").
						First(&order).
						Error; err != nil {
						log.Printf("Error loading order %d for notification: %s\n", orderId, err.Error())
						return
					}
					mailer.NotifyTicketsIssued(order.User.Email, order.Sale.Name, outcome.TicketCount)
				}()
			}

			ctx.JSON(http.StatusOK, gin.H{
				"status":            outcome.Status,
				"message":           outcome.Message,
				"updated":           outcome.Updated,
				"tickets_generated": outcome.TicketsGenerated,
			})
		})
	return apiv1
}
