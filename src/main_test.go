package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tix/src/config"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/middlewares"
	"tix/src/models"
	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TestSuite struct {
	suite.Suite
	DB         *gorm.DB
	Gateway    *lib.FakeGateway
	AdminToken *string
	BuyerToken *string
	Admin      models.User
	Buyer      models.User
}

var dbi *gorm.DB

func (s *TestSuite) SetupSuite() {
	os.Setenv("API_ENV", string(types.Test))
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("saledate", saleDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
	}

	d, err := gorm.Open(sqlite.Open("file:apitest?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("error opening database: %s", err.Error())
	}
	inner, err := d.DB()
	if err != nil {
		log.Fatalf("error accessing inner db instance: %s", err.Error())
	}
	inner.SetMaxOpenConns(1)
	db.NewDB(d)
	s.DB = d
	dbi = d

	err = dbi.AutoMigrate(
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
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	admin := models.User{
		Email:     "organizer@example.com",
		Name:      "Org Anizer",
		FirstName: "Org",
		LastName:  "Anizer",
		Admin:     true,
	}
	buyer := models.User{
		Email:     "buyer@example.com",
		Name:      "Test Buyer",
		FirstName: "Test",
		LastName:  "Buyer",
	}
	if err := d.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		return tx.Create(&buyer).Error
	}); err != nil {
		log.Fatalf("Could not create users due to error: %s\n", err.Error())
	}
	s.Admin = admin
	s.Buyer = buyer

	lib.NewProfileSource(&lib.StaticProfileSource{Profiles: map[uint]types.Profile{
		admin.ID: {UserID: admin.ID, Email: admin.Email, Admin: true},
		buyer.ID: {UserID: buyer.ID, Email: buyer.Email, FirstName: buyer.FirstName, LastName: buyer.LastName},
	}})
	s.Gateway = &lib.FakeGateway{Statuses: map[string]types.GatewayStatus{}}
	lib.NewPaymentGateway(s.Gateway)

	adminToken, err := generateJWT(&admin)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	buyerToken, err := generateJWT(&buyer)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.AdminToken = &adminToken
	s.BuyerToken = &buyerToken
}

func (s *TestSuite) TearDownSuite() {
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Close()
}

func (s *TestSuite) newRouter() *gin.Engine {
	router := setupRouter()
	publicSaleRoutes(router)
	guestAuthRoutes(router)
	paymentCallbackRoute(router)
	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	orderHandlers(authorized)
	ticketHandlers(authorized)
	admin := authorized.Group("")
	admin.Use(middlewares.AdminMiddleware)
	saleHandlers(admin)
	userTypeHandlers(admin)
	return router
}

func (s *TestSuite) request(router *gin.Engine, method, url, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		assert.Nil(s.T(), err)
		reader = strings.NewReader(string(b))
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthRoutes() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Run("Login issues a token for a known user", func() {
		w := s.request(router, "POST", "/api/v1/auth/login", "", map[string]any{
			"email": s.Buyer.Email,
		})
		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		token := gjson.Get(string(rbytes), "token").String()
		assert.NotEmpty(s.T(), token)
	})

	s.Run("Login rejects unknown users", func() {
		w := s.request(router, "POST", "/api/v1/auth/login", "", map[string]any{
			"email": "nobody@example.com",
		})
		assert.Equal(s.T(), 404, w.Code)
	})

	s.Run("Register creates a new account", func() {
		w := s.request(router, "POST", "/api/v1/auth/register", "", map[string]any{
			"email":      "newcomer@example.com",
			"first_name": "New",
			"last_name":  "Comer",
		})
		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Greater(s.T(), gjson.Get(string(rbytes), "uid").Uint(), uint64(0))
	})

	s.Run("Register refuses duplicate emails", func() {
		w := s.request(router, "POST", "/api/v1/auth/register", "", map[string]any{
			"email": s.Buyer.Email,
		})
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestAdminGate() {
	router := s.newRouter()

	w := s.request(router, "POST", "/api/v1/sales", *s.BuyerToken, map[string]any{
		"name": "Not allowed",
	})
	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestCreateSaleValidation() {
	router := s.newRouter()

	past := time.Now().Add(-24 * time.Hour).Format(config.TIME_PARSE_FORMAT)
	future := time.Now().Add(24 * time.Hour).Format(config.TIME_PARSE_FORMAT)

	s.Run("Rejects a begin date in the past", func() {
		w := s.request(router, "POST", "/api/v1/sales", *s.AdminToken, map[string]any{
			"name":     "Past Sale",
			"begin_at": past,
			"end_at":   future,
		})
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Rejects an end date before the begin date", func() {
		later := time.Now().Add(48 * time.Hour).Format(config.TIME_PARSE_FORMAT)
		w := s.request(router, "POST", "/api/v1/sales", *s.AdminToken, map[string]any{
			"name":     "Backwards Sale",
			"begin_at": later,
			"end_at":   future,
		})
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestCheckoutFlow() {
	router := s.newRouter()
	token := *s.AdminToken

	w := s.request(router, "POST", "/api/v1/user-types", token, map[string]any{
		"name": "everyone",
		"rule": map[string]any{"kind": "always"},
	})
	assert.Equal(s.T(), 201, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	userTypeId := gjson.Get(string(rbytes), "id").Uint()

	begin := time.Now().Add(time.Hour).Format(config.TIME_PARSE_FORMAT)
	end := time.Now().Add(72 * time.Hour).Format(config.TIME_PARSE_FORMAT)
	w = s.request(router, "POST", "/api/v1/sales", token, map[string]any{
		"name":     "Checkout Sale",
		"begin_at": begin,
		"end_at":   end,
		"active":   true,
		"visible":  true,
	})
	assert.Equal(s.T(), 201, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	saleId := gjson.Get(string(rbytes), "id").Uint()

	// The sale window opens an hour from now; move it so orders
	// validate immediately.
	err := s.DB.
		Model(&models.Sale{}).
		Where("id = ?", saleId).
		Update("begin_at", time.Now().Add(-time.Minute)).
		Error
	assert.Nil(s.T(), err)

	w = s.request(router, "POST", fmt.Sprintf("/api/v1/sales/%d/items", saleId), token, map[string]any{
		"name":      "General Admission",
		"price":     "25.50",
		"user_type": userTypeId,
		"quantity":  10,
		"active":    true,
	})
	assert.Equal(s.T(), 201, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	itemId := gjson.Get(string(rbytes), "id").Uint()

	buyerToken := *s.BuyerToken
	w = s.request(router, "POST", "/api/v1/orders", buyerToken, map[string]any{
		"sale": saleId,
		"items": []map[string]any{
			{"item": itemId, "quantity": 2},
		},
	})
	assert.Equal(s.T(), 201, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	orderId := gjson.Get(string(rbytes), "id").Uint()

	w = s.request(router, "POST", fmt.Sprintf("/api/v1/orders/%d/pay", orderId), buyerToken, map[string]any{
		"return_url": "http://localhost:3000/checkout/done",
	})
	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	txnId := gjson.Get(string(rbytes), "transaction_id").String()
	assert.NotEmpty(s.T(), txnId)
	assert.NotEmpty(s.T(), gjson.Get(string(rbytes), "url").String())

	s.Gateway.SetStatus(txnId, types.GATEWAY_PAID)
	w = s.request(router, "POST", "/api/v1/payments/callback", "", map[string]any{
		"order_id": orderId,
	})
	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	assert.Equal(s.T(), "paid", gjson.Get(string(rbytes), "status").String())
	assert.True(s.T(), gjson.Get(string(rbytes), "updated").Bool())
	assert.True(s.T(), gjson.Get(string(rbytes), "tickets_generated").Bool())

	// Redelivered callback changes nothing.
	w = s.request(router, "POST", "/api/v1/payments/callback", "", map[string]any{
		"order_id": orderId,
	})
	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	assert.False(s.T(), gjson.Get(string(rbytes), "updated").Bool())
	assert.False(s.T(), gjson.Get(string(rbytes), "tickets_generated").Bool())

	w = s.request(router, "GET", "/api/v1/tickets", buyerToken, nil)
	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ = io.ReadAll(w.Body)
	assert.EqualValues(s.T(), 2, gjson.Get(string(rbytes), "count").Int())
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
