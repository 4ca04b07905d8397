package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort        string
	AppEnv         string
	MerchantID     string
	SaltKey        string
	SaltIndex      string
	GatewayTestURL string
	GatewayProdURL string
	FrontendURL    string
	StoreDriver    string
	PostgresDSN    string
	AdminJWTSecret string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "3001"),
		AppEnv:         os.Getenv("APP_ENV"),
		MerchantID:     os.Getenv("PHONEPE_MERCHANT_ID"),
		SaltKey:        os.Getenv("PHONEPE_SALT_KEY"),
		SaltIndex:      getEnv("PHONEPE_SALT_INDEX", "1"),
		GatewayTestURL: getEnv("PHONEPE_TEST_URL", "https://api-preprod.phonepe.com/apis/pg-sandbox"),
		GatewayProdURL: getEnv("PHONEPE_PROD_URL", "https://api.phonepe.com/apis/hermes"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		StoreDriver:    getEnv("STORE_DRIVER", "memory"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
	}

	if cfg.MerchantID == "" || cfg.SaltKey == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// GatewayURL returns the PhonePe base URL for the current environment.
func (c *Config) GatewayURL() string {
	if c.AppEnv == "production" {
		return c.GatewayProdURL
	}
	return c.GatewayTestURL
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
