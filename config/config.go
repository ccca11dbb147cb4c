package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	// Kafka (comma-separated brokers, empty disables publishing)
	KafkaBrokers string

	// Checkout lifecycle
	GatewayTimeout    time.Duration
	PendingTimeout    time.Duration
	ReconcileInterval time.Duration
}

var AppConfig Config

func LoadConfig() {
	// Try loading .env from different locations
	envLocations := []string{
		".env",
		"config/.env",
		"../config/.env",
		"../../config/.env",
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = Config{
		Port: getEnvWithDefault("PORT", "8080"),

		DBHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: getEnvWithDefault("DB_PASSWORD", "postgres"),
		DBName:     getEnvWithDefault("DB_NAME", "langschool"),

		RazorpayKeyID:         os.Getenv("RazorpayKeyID"),
		RazorpayKeySecret:     os.Getenv("RazorpayKeySecret"),
		RazorpayWebhookSecret: os.Getenv("RazorpayWebhookSecret"),

		SMTPHost:  getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:  getEnvWithDefault("SMTP_PORT", "587"),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: os.Getenv("EMAIL_FROM"),

		KafkaBrokers: getEnvWithDefault("KAFKA_BROKERS", "127.0.0.1:9092"),

		GatewayTimeout:    getDurationWithDefault("GATEWAY_TIMEOUT", 10*time.Second),
		PendingTimeout:    getDurationWithDefault("CHECKOUT_PENDING_TIMEOUT", 30*time.Minute),
		ReconcileInterval: getDurationWithDefault("RECONCILE_INTERVAL", 5*time.Minute),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationWithDefault reads a duration env var. Accepts Go duration
// strings ("30m") or a plain number of minutes.
func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if mins, err := strconv.Atoi(value); err == nil && mins > 0 {
		return time.Duration(mins) * time.Minute
	}
	log.Printf("Invalid duration for %s: %q, using default %v", key, value, defaultValue)
	return defaultValue
}

func GetDBConnString() string {
	return "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=disable"
}
