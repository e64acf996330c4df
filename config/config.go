package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DebugMode enables verbose logging across packages.
var DebugMode = os.Getenv("DEBUG") == "true"

const defaultEffectivePriceMarketDepth = 250

type Config struct {
	Port        string
	MetricsPort string

	BitfinexRestURL string
	BitfinexWsURL   string

	// Depth used when fetching a book for cost estimation. Deliberately
	// deeper than any depth a plain book read would use.
	EffectivePriceMarketDepth int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %s", err)
	}

	DebugMode = os.Getenv("DEBUG") == "true"

	return &Config{
		Port:                      getEnv("PORT", "3005"),
		MetricsPort:               getEnv("METRICS_PORT", "8080"),
		BitfinexRestURL:           getEnv("BITFINEX_REST_URL", "https://api-pub.bitfinex.com"),
		BitfinexWsURL:             getEnv("BITFINEX_WS_URL", "wss://api-pub.bitfinex.com/ws/2"),
		EffectivePriceMarketDepth: getEnvInt("EFFECTIVE_PRICE_MARKET_DEPTH", defaultEffectivePriceMarketDepth),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid value for %s: %s", key, v)
		return fallback
	}
	return n
}
