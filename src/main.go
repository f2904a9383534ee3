package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"strconv"
	"time"

	"tix/src/boot"
	"tix/src/config"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/middlewares"
	"tix/src/models"
	"tix/src/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	"gorm.io/gorm"
)

const (
	apiPrefix string = "/api/v1"
)

var saleDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	today := time.Now()
	log.Printf("%s: ok=%v,v=%v,n=%v", fl.FieldName(), ok, datetime, today)
	if ok {
		if today.After(datetime) {
			return false
		}
	}
	return true
}

var gtfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	log.Printf("%s: param=%s, ok=%v,v=%v,n=%v", fl.FieldName(), fl.Param(), ok, datetime, fielddatetime)
	if ok {
		if fielddatetime.After(datetime) {
			return false
		}
	}
	return true
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicSaleRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/sales", func(ctx *gin.Context) {
			var sales []models.Sale
			db := db.GetDb()
			err := db.
				Model(&models.Sale{}).
				Where(&models.Sale{Visible: true}).
				Order("begin_at asc").
				Limit(20).
				Find(&sales).
				Error
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sales})
		}).
		GET("/sales/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var sale models.Sale
			db := db.GetDb()
			err := db.
				Model(&models.Sale{}).
				Where(&models.Sale{ID: params.ID, Visible: true}).
				Preload("Items.Fields.Field").
				Preload("Items.UserType").
				Preload("Groups").
				First(&sale).
				Error
			if err != nil {
				log.Printf("Error finding sale %d: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "sale does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sale})
		})
	return apiv1
}

func main() {
	apiEnv := types.Env(config.API_ENV)
	if apiEnv == types.Local {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	if apiEnv == types.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	boot.InitDb()
	boot.InitScheduler()
	defer boot.StopScheduler()
	if os.Getenv("REDIS_HOST") != "" {
		lib.TestRedis()
	}

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == types.Local {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("saledate", saleDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
	}

	router = maintenanceModeMiddleware(router)

	publicSaleRoutes(router)

	guestAuthRoutes(router)

	paymentCallbackRoute(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized = orderHandlers(authorized)
		authorized = ticketHandlers(authorized)

		authorized.
			GET("/users/me", func(ctx *gin.Context) {
				var user models.User
				userId := ctx.GetUint("id")
				db := db.GetDb()
				if err := db.Transaction(func(tx *gorm.DB) error {
					if err := tx.
						Where(&models.User{ID: userId}).
						Preload("UserType").
						First(&user).
						Error; err != nil {
						return err
					}
					return nil
				}); err != nil {
					ctx.Status(http.StatusBadRequest)
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": user})
			})

		admin := authorized.Group("")
		admin.Use(middlewares.AdminMiddleware)
		admin = saleHandlers(admin)
		admin = userTypeHandlers(admin)
	}

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
