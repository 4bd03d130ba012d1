package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the environment-driven configuration so main stays lean.
type Config struct {
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Vies      ViesConfig
	Invoicing InvoicingConfig
	Supplier  SupplierConfig
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr          string
	AdminJWTKey   string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration
}

// PostgresConfig holds the primary store connection settings.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds connection settings for the lock backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker and topic settings for triggers and events.
type KafkaConfig struct {
	Brokers       []string
	TriggerTopic  string
	EventTopic    string
	ConsumerGroup string
}

// ViesConfig configures the external VAT-registry client.
//
// RequesterVatID is the supplier's own VAT id; the registry only issues a
// consultation number when it is sent. OfflineThreshold bounds how old a
// cached consultation may be to stand in for the registry during an outage;
// zero disables the fallback entirely.
type ViesConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RequesterVatID   string
	OfflineThreshold time.Duration
}

// Window modes for the invoiceable period.
const (
	WindowFromPaidDate = "paid_date"
	WindowFromMonthEnd = "end_of_month"
)

// InvoicingConfig carries the generation rules.
//
// NumberAllPaid extends number assignment to every paid payment even when
// the payment is not (yet) invoiceable, so the numbering period reflects
// payment order rather than invoicing order.
type InvoicingConfig struct {
	WindowDays    int
	WindowMode    string
	NumberAllPaid bool
	LockTTL       time.Duration
	LockWait      time.Duration
}

// SupplierConfig is the issuing company's identity. It is copied onto every
// invoice as an immutable snapshot at creation time.
type SupplierConfig struct {
	Name      string
	Street    string
	City      string
	Zip       string
	Country   string
	CompanyID string
	TaxID     string
	VatID     string
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:          getEnv("INVOICING_ADDR", ":8080"),
			AdminJWTKey:   getEnv("INVOICING_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),
			ReadTimeout:   getDuration("INVOICING_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("INVOICING_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:   getDuration("INVOICING_IDLE_TIMEOUT", 2*time.Minute),
			ShutdownGrace: getDuration("INVOICING_SHUTDOWN_GRACE", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          getEnv("POSTGRES_URL", "postgres://localhost:5432/invoicing?sslmode=disable"),
			MaxOpenConns: getInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TriggerTopic:  getEnv("KAFKA_TRIGGER_TOPIC", "invoicing.generate"),
			EventTopic:    getEnv("KAFKA_EVENT_TOPIC", "invoicing.invoice.created"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "invoicing-generator"),
		},
		Vies: ViesConfig{
			BaseURL:          getEnv("VIES_BASE_URL", "https://ec.europa.eu/taxation_customs/vies/rest-api"),
			Timeout:          getDuration("VIES_TIMEOUT", 10*time.Second),
			RequesterVatID:   getEnv("VIES_REQUESTER_VAT_ID", ""),
			OfflineThreshold: getDuration("VIES_OFFLINE_THRESHOLD", 0),
		},
		Invoicing: InvoicingConfig{
			WindowDays:    getInt("INVOICING_WINDOW_DAYS", 15),
			WindowMode:    getEnv("INVOICING_WINDOW_MODE", WindowFromPaidDate),
			NumberAllPaid: getBool("INVOICING_NUMBER_ALL_PAID", false),
			LockTTL:       getDuration("INVOICING_LOCK_TTL", 30*time.Second),
			LockWait:      getDuration("INVOICING_LOCK_WAIT", 5*time.Second),
		},
		Supplier: SupplierConfig{
			Name:      getEnv("SUPPLIER_NAME", ""),
			Street:    getEnv("SUPPLIER_STREET", ""),
			City:      getEnv("SUPPLIER_CITY", ""),
			Zip:       getEnv("SUPPLIER_ZIP", ""),
			Country:   getEnv("SUPPLIER_COUNTRY", ""),
			CompanyID: getEnv("SUPPLIER_COMPANY_ID", ""),
			TaxID:     getEnv("SUPPLIER_TAX_ID", ""),
			VatID:     getEnv("SUPPLIER_VAT_ID", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
