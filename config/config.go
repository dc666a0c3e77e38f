package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Document store.
	StoreDriver  string `mapstructure:"STORE_DRIVER"` // "mongo" or "memory"
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis backing the asynq queue.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Stripe.
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `mapstructure:"CHECKOUT_CANCEL_URL"`
	Currency            string `mapstructure:"CURRENCY"`

	// Reservation policy.
	HoldTTL            time.Duration `mapstructure:"HOLD_TTL"`
	CancellationWindow time.Duration `mapstructure:"CANCELLATION_WINDOW"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepHorizon       time.Duration `mapstructure:"SWEEP_HORIZON"`
	ReconcileInterval  time.Duration `mapstructure:"RECONCILE_INTERVAL"`

	// PriceTiers maps a tier key such as "gcse_standard" to a price in minor units.
	PriceTiers map[string]int64 `mapstructure:"PRICE_TIERS"`

	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	WorkerConcurrency       int    `mapstructure:"WORKER_CONCURRENCY"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("STORE_DRIVER", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017/?replicaSet=rs0")
	viper.SetDefault("DATABASE_NAME", "tutorbook")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("CURRENCY", "gbp")
	viper.SetDefault("HOLD_TTL", 15*time.Minute)
	viper.SetDefault("CANCELLATION_WINDOW", 24*time.Hour)
	viper.SetDefault("SWEEP_INTERVAL", 5*time.Minute)
	viper.SetDefault("SWEEP_HORIZON", 48*time.Hour)
	viper.SetDefault("RECONCILE_INTERVAL", 10*time.Minute)
	viper.SetDefault("WORKER_CONCURRENCY", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// From the environment the price list arrives as "tier=amount,...".
	if len(AppConfig.PriceTiers) == 0 {
		tiers, err := ParsePriceTiers(viper.GetString("PRICE_TIERS"))
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		AppConfig.PriceTiers = tiers
	}
}

// ParsePriceTiers reads a list such as "gcse_standard=4500,gcse_discount=3800".
func ParsePriceTiers(raw string) (map[string]int64, error) {
	tiers := make(map[string]int64)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, amount, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("PRICE_TIERS entry %q is not tier=amount", entry)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("PRICE_TIERS entry %q needs a positive amount in minor units", entry)
		}
		tiers[strings.ToLower(strings.TrimSpace(name))] = v
	}
	return tiers, nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
