// Package config loads the runtime configuration shared by the Lambda binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxPurchaseLimit is used when MAX_PURCHASE_LIMIT is unset or invalid.
const DefaultMaxPurchaseLimit = 5

// Event bus transports for order events.
const (
	EventBusSNS = "sns"
	EventBusSQS = "sqs"
)

// Config holds every knob recognised by the handlers. It is built once in
// main and passed to constructors.
type Config struct {
	// flash sale
	FlashSaleTable   string
	ProductTable     string
	UserSessionTable string
	SNSTopicARN      string
	MaxPurchaseLimit int
	AtomicCommit     bool

	// order pipeline
	OrdersTable            string
	OrderTopicARN          string
	EventBus               string
	OrderEventsQueueURL    string
	InventoryServiceURL    string
	PaymentServiceURL      string
	NotificationServiceURL string
	PaymentAPIKeySecret    string
	DownstreamTimeout      time.Duration

	// dispatcher
	IdempotencyTable string
	IdempotencyTTL   time.Duration

	// ambient
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	LogLevel            string
	RunLocal            bool
	AWSRegion           string
	AWSEndpoint         string
}

// Load reads a .env file when one exists, then builds Config from the
// environment with defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		FlashSaleTable:   get("FLASH_SALE_TABLE", "FlashSaleOrders"),
		ProductTable:     get("PRODUCT_TABLE", "Products"),
		UserSessionTable: get("USER_SESSION_TABLE", "UserSessions"),
		SNSTopicARN:      get("SNS_TOPIC_ARN", ""),
		MaxPurchaseLimit: purchaseLimit(get("MAX_PURCHASE_LIMIT", "")),
		AtomicCommit:     get("FLASH_SALE_ATOMIC_COMMIT", "false") == "true",

		OrdersTable:            get("ORDERS_TABLE", "Orders"),
		OrderTopicARN:          get("ORDER_TOPIC_ARN", ""),
		EventBus:               strings.ToLower(get("EVENT_BUS", EventBusSNS)),
		OrderEventsQueueURL:    get("ORDER_EVENTS_QUEUE_URL", ""),
		InventoryServiceURL:    get("INVENTORY_SERVICE_URL", "https://api.website.com/inventory"),
		PaymentServiceURL:      get("PAYMENT_SERVICE_URL", "https://api.website.com/payments"),
		NotificationServiceURL: get("NOTIFICATION_SERVICE_URL", "https://api.website.com/notifications"),
		PaymentAPIKeySecret:    get("PAYMENT_API_KEY_SECRET", ""),

		IdempotencyTable: get("IDEMPOTENCY_TABLE", "NotificationIdempotency"),

		CloudWatchEnabled:   get("CLOUDWATCH_ENABLED", "false") == "true",
		CloudWatchNamespace: get("CLOUDWATCH_NAMESPACE", "FlashSaleOrderflow"),
		LogLevel:            get("LOG_LEVEL", "info"),
		RunLocal:            get("RUN_LOCAL", "false") == "true",
		AWSRegion:           get("AWS_REGION", ""),
		AWSEndpoint:         get("AWS_ENDPOINT_OVERRIDE", ""),
	}

	var err error
	if cfg.DownstreamTimeout, err = time.ParseDuration(get("DOWNSTREAM_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("DOWNSTREAM_TIMEOUT: %w", err)
	}
	if cfg.IdempotencyTTL, err = time.ParseDuration(get("IDEMPOTENCY_TTL", "48h")); err != nil {
		return Config{}, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
	}

	switch cfg.EventBus {
	case EventBusSNS:
	case EventBusSQS:
		if cfg.OrderEventsQueueURL == "" {
			return Config{}, errors.New("ORDER_EVENTS_QUEUE_URL is required when EVENT_BUS=sqs")
		}
	default:
		return Config{}, fmt.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
	}

	return cfg, nil
}

// OrderEventsTopic is the destination for order-status events on the
// configured bus.
func (c Config) OrderEventsTopic() string {
	if c.EventBus == EventBusSQS {
		return c.OrderEventsQueueURL
	}
	return c.OrderTopicARN
}

// RequireOrderEvents reports an error when no destination is configured for
// order events. The order processor cannot publish without one.
func (c Config) RequireOrderEvents() error {
	if c.OrderEventsTopic() == "" {
		return errors.New("ORDER_TOPIC_ARN is required when EVENT_BUS=sns")
	}
	return nil
}

func purchaseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultMaxPurchaseLimit
	}
	return n
}
