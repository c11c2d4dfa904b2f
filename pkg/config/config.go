package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Settlement   SettlementConfig
	CORS         CORSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSettlement reads only the settlement block, for clients that have no
// database or app settings.
func LoadSettlement() (SettlementConfig, error) {
	var cfg SettlementConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return SettlementConfig{}, fmt.Errorf("parsing settlement config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COTIZADOR_APP_ENV" required:"true"`
	Port         string `envconfig:"COTIZADOR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COTIZADOR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"COTIZADOR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"COTIZADOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COTIZADOR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COTIZADOR_DB_DSN"`
	Driver string `envconfig:"COTIZADOR_DB_DRIVER" default:"postgres"`

	// SQLitePath is only read when the UseSQLite flag is on.
	SQLitePath string `envconfig:"COTIZADOR_DB_SQLITE_PATH" default:"cotizador.db"`

	// Used to build DSN when it is empty.
	Host     string `envconfig:"COTIZADOR_DB_HOST"`
	Port     int    `envconfig:"COTIZADOR_DB_PORT" default:"5432"`
	User     string `envconfig:"COTIZADOR_DB_USER"`
	Password string `envconfig:"COTIZADOR_DB_PASSWORD"`
	Name     string `envconfig:"COTIZADOR_DB_NAME"`
	SSLMode  string `envconfig:"COTIZADOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COTIZADOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COTIZADOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COTIZADOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COTIZADOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL and address disables sale idempotency.
type RedisConfig struct {
	URL          string        `envconfig:"COTIZADOR_REDIS_URL"`
	Address      string        `envconfig:"COTIZADOR_REDIS_ADDR"`
	Password     string        `envconfig:"COTIZADOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"COTIZADOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COTIZADOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COTIZADOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COTIZADOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COTIZADOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COTIZADOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COTIZADOR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COTIZADOR_AUTO_MIGRATE" default:"false"`
}

type SettlementConfig struct {
	// BaseURL is where clients reach the settlement API.
	BaseURL         string        `envconfig:"COTIZADOR_SETTLEMENT_BASE_URL" default:"http://localhost:8080"`
	ClientTimeout   time.Duration `envconfig:"COTIZADOR_SETTLEMENT_CLIENT_TIMEOUT" default:"15s"`
	IdempotencyTTL  time.Duration `envconfig:"COTIZADOR_SETTLEMENT_IDEMPOTENCY_TTL" default:"24h"`
	RateLimitPerIP  int           `envconfig:"COTIZADOR_SETTLEMENT_RATE_LIMIT_PER_IP" default:"30"`
	RateLimitWindow time.Duration `envconfig:"COTIZADOR_SETTLEMENT_RATE_LIMIT_WINDOW" default:"1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"COTIZADOR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COTIZADOR_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	CatalogTopic string `envconfig:"COTIZADOR_PUBSUB_CATALOG_TOPIC" default:"cotizador-catalog-events"`
	SalesTopic   string `envconfig:"COTIZADOR_PUBSUB_SALES_TOPIC" default:"cotizador-sales-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COTIZADOR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COTIZADOR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COTIZADOR_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// ensureDSN assembles a postgres URL from the discrete host settings when no
// DSN is given. SQLite runs need neither.
func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is not set and neither is %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
