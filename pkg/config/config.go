package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"minidoodle/pkg/client"
	"minidoodle/pkg/logger"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`

	MongoURI          string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabaseName string        `env:"MONGO_DATABASE_NAME" envDefault:"minidoodle"`
	MongoConnTimeout  time.Duration `env:"MONGO_CONN_TIMEOUT" envDefault:"10s"`

	MySQLDSN          string        `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/minidoodle?parseTime=true"`
	MySQLMaxOpenConns int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MySQLConnTimeout  time.Duration `env:"MYSQL_CONN_TIMEOUT" envDefault:"10s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaEventsTopic string `env:"KAFKA_EVENTS_TOPIC" envDefault:"minidoodle.events"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	MaxRequestSize int           `env:"MAX_REQUEST_SIZE" envDefault:"1048576"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// LockWaitTimeout bounds how long a booking waits for the slot lock.
	// Zero waits until the request context ends.
	LockWaitTimeout time.Duration `env:"LOCK_WAIT_TIMEOUT" envDefault:"0s"`
	LockLeaseTTL    time.Duration `env:"LOCK_LEASE_TTL" envDefault:"10s"`

	MinSlotDurationMin int    `env:"MIN_SLOT_DURATION_MIN" envDefault:"15"`
	MaxSlotDurationMin int    `env:"MAX_SLOT_DURATION_MIN" envDefault:"480"`
	DefaultTimezone    string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`

	Log    *logger.Logger
	Client *client.Client
}

// Parse reads the environment into a Config without validating it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func Load(serviceName string) *Config {
	bootLog := logger.New(logger.Config{Service: serviceName})

	cfg, err := Parse()
	if err != nil {
		bootLog.Fatal("Failed to load configuration", "error", err)
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// SetStorage connects the configured storage backend and, when configured, Redis.
func (cfg *Config) SetStorage() {
	switch cfg.StorageBackend {
	case BackendMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	case BackendMySQL:
		cfg.Client.SetMySQL(cfg.Log, cfg.MySQLDSN, cfg.MySQLMaxOpenConns, cfg.MySQLConnTimeout)
	}
	if cfg.RedisAddr != "" {
		cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case BackendMySQL:
		if dsn, err := mysql.ParseDSN(cfg.MySQLDSN); err != nil {
			errors = append(errors, fmt.Sprintf("MySQLDSN is invalid: %v", err))
		} else if !dsn.ParseTime {
			errors = append(errors, "MySQLDSN must set parseTime=true")
		}
		if cfg.MySQLMaxOpenConns <= 0 {
			errors = append(errors, fmt.Sprintf("MySQLMaxOpenConns must be positive, got: %d", cfg.MySQLMaxOpenConns))
		}
		if cfg.MySQLConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MySQLConnTimeout must be positive, got: %s", cfg.MySQLConnTimeout))
		}
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [memory, mongo, mysql], got: %s", cfg.StorageBackend))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LockWaitTimeout < 0 {
		errors = append(errors, fmt.Sprintf("LockWaitTimeout cannot be negative, got: %s", cfg.LockWaitTimeout))
	}
	if cfg.LockLeaseTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockLeaseTTL must be positive, got: %s", cfg.LockLeaseTTL))
	}

	if cfg.MinSlotDurationMin <= 0 {
		errors = append(errors, fmt.Sprintf("MinSlotDurationMin must be positive, got: %d", cfg.MinSlotDurationMin))
	}
	if cfg.MaxSlotDurationMin < cfg.MinSlotDurationMin {
		errors = append(errors, fmt.Sprintf("MaxSlotDurationMin (%d) must be >= MinSlotDurationMin (%d)", cfg.MaxSlotDurationMin, cfg.MinSlotDurationMin))
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimezone must be an IANA zone name, got: %s", cfg.DefaultTimezone))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mysql_dsn", redactMySQLDSN(cfg.MySQLDSN),
		"mysql_max_open_conns", cfg.MySQLMaxOpenConns,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"kafka_events_topic", cfg.KafkaEventsTopic,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"lock_wait_timeout", cfg.LockWaitTimeout,
		"lock_lease_ttl", cfg.LockLeaseTTL,
		"min_slot_duration_min", cfg.MinSlotDurationMin,
		"max_slot_duration_min", cfg.MaxSlotDurationMin,
		"default_timezone", cfg.DefaultTimezone,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactMySQLDSN(dsn string) string {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "<invalid>"
	}
	if parsed.Passwd != "" {
		parsed.Passwd = "***"
	}
	return parsed.FormatDSN()
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
