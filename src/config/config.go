package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

func windowFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// OngoingWindow is how long an open cart may sit untouched before it
// expires.
func OngoingWindow() time.Duration {
	return windowFromEnv("ORDER_ONGOING_WINDOW", 15*time.Minute)
}

// PaymentWindow is how long an order may wait on the payment gateway
// before its reservation is released.
func PaymentWindow() time.Duration {
	return windowFromEnv("ORDER_PAYMENT_WINDOW", 1*time.Hour)
}

// ValidationWindow is how long an order may wait on manual validation.
func ValidationWindow() time.Duration {
	return windowFromEnv("ORDER_VALIDATION_WINDOW", 30*24*time.Hour)
}
