package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/roadside-dispatch/internal/money"
)

// ServerConfig captures all tunable parameters for the dispatch process.
// Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
// The visibility thresholds are configuration, never hard-coded.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers  []string
	ChangeTopic   string
	LocationTopic string
	KafkaGroup    string

	PGDSN string

	ProviderID        string
	AgeThreshold      time.Duration
	DistanceKm        float64
	RefreshInterval   time.Duration
	DistanceFeePerKm  money.Amount
	Currency          string
	ZeroFeeCategories []string

	GeocodeEndpoint string
	GeocodeCacheTTL time.Duration

	FCMEndpoint string
	FCMKey      string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:          ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RedisGeoKey:       "providers_geo",
		ChangeTopic:       "emergency-changes",
		LocationTopic:     "provider-locations",
		KafkaGroup:        "roadside-dispatch",
		AgeThreshold:      10 * time.Minute,
		DistanceKm:        2,
		RefreshInterval:   15 * time.Second,
		DistanceFeePerKm:  money.FromMajor(10),
		Currency:          "usd",
		ZeroFeeCategories: []string{"fuel_delivery"},
		GeocodeCacheTTL:   10 * time.Minute,
		LogLevel:          "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.ChangeTopic, "KAFKA_CHANGE_TOPIC")
	setStringFromEnv(&cfg.LocationTopic, "KAFKA_LOCATION_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.ProviderID, "PROVIDER_ID")
	setDurationFromEnv(&cfg.AgeThreshold, "VISIBILITY_AGE_THRESHOLD", &errs)
	setFloatFromEnv(&cfg.DistanceKm, "VISIBILITY_DISTANCE_KM", &errs)
	setDurationFromEnv(&cfg.RefreshInterval, "REFRESH_INTERVAL", &errs)
	setAmountFromEnv(&cfg.DistanceFeePerKm, "DISTANCE_FEE_PER_KM", &errs)
	setStringFromEnv(&cfg.Currency, "STRIPE_CURRENCY")
	if v := os.Getenv("ZERO_FEE_CATEGORIES"); v != "" {
		cfg.ZeroFeeCategories = splitAndTrim(v)
	}

	setStringFromEnv(&cfg.GeocodeEndpoint, "GEOCODE_ENDPOINT")
	setDurationFromEnv(&cfg.GeocodeCacheTTL, "GEOCODE_CACHE_TTL", &errs)

	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.AgeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("VISIBILITY_AGE_THRESHOLD must be > 0"))
	}
	if cfg.DistanceKm <= 0 {
		errs = append(errs, fmt.Errorf("VISIBILITY_DISTANCE_KM must be > 0"))
	}
	if cfg.DistanceFeePerKm < 0 {
		errs = append(errs, fmt.Errorf("DISTANCE_FEE_PER_KM must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setAmountFromEnv(target *money.Amount, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		a, err := money.ParseDecimal(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = a
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
