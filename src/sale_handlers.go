package main

import (
	"log"
	"net/http"

	"tix/src/db"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func saleHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/sales", func(ctx *gin.Context) {
			var body types.CreateSaleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			id, err := utils.CreateNewSale(&body, userId)
			if err != nil {
				log.Printf("Error creating sale: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		PATCH("/sales/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateSaleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var sale models.Sale
				if err := tx.Where(&models.Sale{ID: params.ID}).First(&sale).Error; err != nil {
					return err
				}
				updates := map[string]any{}
				if body.Active != nil {
					updates["active"] = *body.Active
				}
				if body.Visible != nil {
					updates["visible"] = *body.Visible
				}
				if len(updates) == 0 {
					return nil
				}
				return tx.
					Model(&models.Sale{}).
					Where("id = ?", params.ID).
					Updates(updates).
					Error
			}); err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "sale does not exist"})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/sales/:id/stats", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			stats, err := utils.GetSaleStats(params.ID)
			if err != nil {
				log.Printf("Error retrieving stats for sale %d: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		}).
		POST("/sales/:id/groups", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CreateItemGroupRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewItemGroup(params.ID, &body)
			if err != nil {
				log.Printf("Error creating group: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		POST("/sales/:id/items", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CreateItemRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewItem(params.ID, &body)
			if err != nil {
				log.Printf("Error creating item: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		POST("/fields", func(ctx *gin.Context) {
			var body struct {
				Name string `json:"name" binding:"required"`
				Kind string `json:"kind,omitempty"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			field := models.Field{Name: body.Name}
			if body.Kind != "" {
				field.Kind = body.Kind
			}
			db := db.GetDb()
			if err := db.Create(&field).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": field.ID})
		}).
		GET("/fields", func(ctx *gin.Context) {
			var fields []models.Field
			db := db.GetDb()
			if err := db.Find(&fields).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": fields})
		})
	return g
}

func userTypeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/user-types", func(ctx *gin.Context) {
			var body struct {
				Name string      `json:"name" binding:"required"`
				Rule models.Rule `json:"rule" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userType := models.UserType{
				Name: body.Name,
				Rule: body.Rule,
			}
			db := db.GetDb()
			if err := db.Create(&userType).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": userType.ID})
		}).
		GET("/user-types", func(ctx *gin.Context) {
			var userTypes []models.UserType
			db := db.GetDb()
			if err := db.Find(&userTypes).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": userTypes})
		})
	return g
}
