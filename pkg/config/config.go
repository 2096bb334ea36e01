package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Shop          ShopConfig
	PayGate       PayGateConfig
	WhatsApp      WhatsAppConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Eventing      EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Shop.parseAmounts(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ESTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ESTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ESTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ESTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ESTORE_DB_DSN"`
	Driver string `envconfig:"ESTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ESTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"ESTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ESTORE_DB_USER"`
	LegacyPassword string `envconfig:"ESTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ESTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ESTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ESTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ESTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ESTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ESTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ESTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ESTORE_REDIS_ADDR"`
	Password     string        `envconfig:"ESTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ESTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ESTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ESTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ESTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ESTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ESTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ESTORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ESTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ESTORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ShopConfig carries the storefront settings previously buried in a settings
// singleton: currency, shipping rules, and receipt contact numbers.
type ShopConfig struct {
	Currency              string `envconfig:"ESTORE_SHOP_CURRENCY" default:"FCFA"`
	FreeShippingThreshold string `envconfig:"ESTORE_SHOP_FREE_SHIPPING_THRESHOLD" default:"100000"`
	DefaultShippingCost   string `envconfig:"ESTORE_SHOP_DEFAULT_SHIPPING_COST" default:"5000"`
	DefaultCountry        string `envconfig:"ESTORE_SHOP_DEFAULT_COUNTRY" default:"Togo"`

	freeShippingThreshold decimal.Decimal
	defaultShippingCost   decimal.Decimal
}

func (s *ShopConfig) parseAmounts() error {
	threshold, err := decimal.NewFromString(s.FreeShippingThreshold)
	if err != nil {
		return fmt.Errorf("parsing free shipping threshold: %w", err)
	}
	cost, err := decimal.NewFromString(s.DefaultShippingCost)
	if err != nil {
		return fmt.Errorf("parsing default shipping cost: %w", err)
	}
	s.freeShippingThreshold = threshold
	s.defaultShippingCost = cost
	return nil
}

// FreeShippingThresholdAmount returns the parsed free-shipping cutoff.
func (s ShopConfig) FreeShippingThresholdAmount() decimal.Decimal {
	return s.freeShippingThreshold
}

// DefaultShippingCostAmount returns the parsed flat shipping cost.
func (s ShopConfig) DefaultShippingCostAmount() decimal.Decimal {
	return s.defaultShippingCost
}

type PayGateConfig struct {
	APIKey      string        `envconfig:"ESTORE_PAYGATE_API_KEY" required:"true"`
	PayURL      string        `envconfig:"ESTORE_PAYGATE_PAY_URL" default:"https://paygateglobal.com/api/v1/pay"`
	StatusURL   string        `envconfig:"ESTORE_PAYGATE_STATUS_URL" default:"https://paygateglobal.com/api/v1/status"`
	CallbackURL string        `envconfig:"ESTORE_PAYGATE_CALLBACK_URL" required:"true"`
	Timeout     time.Duration `envconfig:"ESTORE_PAYGATE_TIMEOUT" default:"30s"`
}

type WhatsAppConfig struct {
	GatewayURL    string        `envconfig:"ESTORE_WHATSAPP_GATEWAY_URL"`
	GatewayToken  string        `envconfig:"ESTORE_WHATSAPP_GATEWAY_TOKEN"`
	SenderNumber  string        `envconfig:"ESTORE_WHATSAPP_SENDER_NUMBER"`
	MerchantPhone string        `envconfig:"ESTORE_WHATSAPP_MERCHANT_PHONE"`
	Timeout       time.Duration `envconfig:"ESTORE_WHATSAPP_TIMEOUT" default:"15s"`
}

type AuthRateLimitConfig struct {
	CheckoutWindow    time.Duration `envconfig:"ESTORE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserLimit int           `envconfig:"ESTORE_RATE_LIMIT_CHECKOUT_USER_LIMIT" default:"5"`
	CheckoutIPLimit   int           `envconfig:"ESTORE_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
	CallbackWindow    time.Duration `envconfig:"ESTORE_RATE_LIMIT_CALLBACK_WINDOW" default:"1m"`
	CallbackIPLimit   int           `envconfig:"ESTORE_RATE_LIMIT_CALLBACK_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ESTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ESTORE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ESTORE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ESTORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ESTORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"ESTORE_PUBSUB_ORDERS_TOPIC" default:"estore-order-events"`
	NotificationSubscription string `envconfig:"ESTORE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ESTORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ESTORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ESTORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"ESTORE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
