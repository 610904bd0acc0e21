package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	// APIURL is the backend origin product images are served from ({APIURL}/storage/{image}).
	APIURL      string
	OrderAPIURL string
	// PublicURL is the storefront's own external origin.
	PublicURL string
	Currency  string

	StripePublicKey string
	StripeSecretKey string
	JWTSecret       string

	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPassword string

	StoreDriver string
	StoreDSN    string

	KafkaBrokers []string
	KafkaTopic   string

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	SubmitRate         float64
	SubmitBurst        int
}

// LoadDotEnv reads .env into the process environment when the file exists.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

func Load() *Config {
	return &Config{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIURL:      strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
		OrderAPIURL: strings.TrimRight(getEnv("ORDER_API_URL", getEnv("API_URL", "http://localhost:8000")), "/"),
		PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+getEnv("HTTP_PORT", "8080")), "/"),
		Currency:    getEnv("CURRENCY", "MAD"),

		StripePublicKey: getEnv("STRIPE_PUBLIC_KEY", ""),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		StoreDSN:    getEnv("STORE_DSN", "file:storefront.db"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-events"),

		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		SubmitRate:         getFloat("SUBMIT_RATE", 1),
		SubmitBurst:        getInt("SUBMIT_BURST", 3),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
