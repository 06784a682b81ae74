package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProcessAPI    = "api"
	ProcessWorker = "worker"
	ProcessCLI    = "cli"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"tokendrip"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"tokendrip.db"`

	LedgerRPCURL  string `env:"LEDGER_RPC_URL"`
	Chain         string `env:"CHAIN" envDefault:"bnb"`
	ChainID       int64  `env:"CHAIN_ID" envDefault:"56"`
	TokenContract string `env:"TOKEN_CONTRACT"`
	TokenDecimals int    `env:"TOKEN_DECIMALS" envDefault:"18"`

	DistributionAmount      string `env:"DISTRIBUTION_AMOUNT"`
	TreasuryPrivateKey      string `env:"TREASURY_PRIVATE_KEY"`
	MinConfirmations        int    `env:"MIN_CONFIRMATIONS" envDefault:"3"`
	DailyDistributionTarget int    `env:"DAILY_DISTRIBUTION_TARGET" envDefault:"60"`
	TotalDistributionTarget int    `env:"TOTAL_DISTRIBUTION_TARGET" envDefault:"0"`
	StopOnTotalTarget       bool   `env:"STOP_ON_TOTAL_TARGET" envDefault:"true"`

	WalletPoolTarget int           `env:"WALLET_POOL_TARGET" envDefault:"70"`
	WalletPoolCron   string        `env:"WALLET_POOL_CRON" envDefault:"0 0 * * *"`
	DistributionCron string        `env:"DISTRIBUTION_CRON" envDefault:"5 0 * * *"`
	WorkerInterval   time.Duration `env:"WORKER_INTERVAL" envDefault:"30s"`
	SubmitBatchSize  int           `env:"SUBMIT_BATCH_SIZE" envDefault:"10"`
	ConfirmBatchSize int           `env:"CONFIRM_BATCH_SIZE" envDefault:"50"`

	AdminUserID   string        `env:"ADMIN_USER_ID"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
	AdminRole     string        `env:"ADMIN_ROLE" envDefault:"admin"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"12h"`

	ExportDir string `env:"EXPORT_DIR" envDefault:"exports"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

// Validate reports every missing or invalid value the given process needs.
func (c Config) Validate(process string) error {
	var problems []error

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			problems = append(problems, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres"))
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			problems = append(problems, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		problems = append(problems, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}

	if c.TokenDecimals < 0 {
		problems = append(problems, errors.New("TOKEN_DECIMALS must not be negative"))
	}
	if c.MinConfirmations < 0 {
		problems = append(problems, errors.New("MIN_CONFIRMATIONS must not be negative"))
	}
	if c.WalletPoolTarget < 0 {
		problems = append(problems, errors.New("WALLET_POOL_TARGET must not be negative"))
	}

	if process == ProcessAPI || process == ProcessWorker {
		if c.StoreDriver != StoreMemory && strings.TrimSpace(c.LedgerRPCURL) == "" {
			problems = append(problems, errors.New("LEDGER_RPC_URL is required"))
		}
		if c.WorkerInterval <= 0 {
			problems = append(problems, errors.New("WORKER_INTERVAL must be positive"))
		}
	}
	if process == ProcessAPI {
		if strings.TrimSpace(c.JWTSecret) == "" {
			problems = append(problems, errors.New("JWT_SECRET is required"))
		}
		if strings.TrimSpace(c.AdminUserID) == "" || c.AdminPassword == "" {
			problems = append(problems, errors.New("ADMIN_USER_ID and ADMIN_PASSWORD are required"))
		}
	}
	return errors.Join(problems...)
}
