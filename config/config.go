package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

type Config struct {
	Port       int `env:"PORT"`
	LedgerPort int `env:"LEDGER_PORT,default=8081"`

	DataDir     string `env:"LEDGER_DATA_DIR,default=data"`
	DatabaseURL string `env:"DATABASE_URL"`

	Admin       string `env:"LEDGER_ADMIN,default=admin"`
	Account     string `env:"LEDGER_ACCOUNT,default=draw-ledger"`
	UnitPrice   uint64 `env:"LEDGER_UNIT_PRICE,default=10000000000000000"` // 0.01 in 18-decimal base units
	MaxTickets  uint64 `env:"LEDGER_MAX_TICKETS,default=1000"`
	PrizesFile  string `env:"LEDGER_PRIZES_FILE"`
	EntropySeed string `env:"LEDGER_ENTROPY_SEED,default=genesis"`

	JWTSecret string `env:"JWT_SECRET"`

	// Without TOKEN_ENDPOINT the prize token is kept in process, with
	// TokenSupply minted to the admin and InitialFloat of it handed to the
	// ledger account on a fresh ledger.
	TokenEndpoint string `env:"TOKEN_ENDPOINT"`
	TokenSecret   string `env:"TOKEN_SECRET"`
	TokenSupply   uint64 `env:"TOKEN_SUPPLY,default=1000000000"`
	InitialFloat  uint64 `env:"LEDGER_INITIAL_FLOAT,default=100000"`

	// Without PLATFORM_URL ticket payments are only booked, not debited.
	PlatformURL          string `env:"PLATFORM_URL"`
	PlatformServiceToken string `env:"PLATFORM_SERVICE_TOKEN"`
	PlatformCurrency     string `env:"PLATFORM_CURRENCY,default=ETH"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=1m"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	// Prefer PORT (Render, Fly.io, Railway, etc.) then LEDGER_PORT
	if cfg.Port <= 0 {
		cfg.Port = cfg.LedgerPort
	}
	if cfg.UnitPrice == 0 {
		return nil, errors.New("config: LEDGER_UNIT_PRICE must be greater than 0")
	}
	if cfg.TokenEndpoint == "" && cfg.InitialFloat > cfg.TokenSupply {
		return nil, errors.New("config: LEDGER_INITIAL_FLOAT exceeds TOKEN_SUPPLY")
	}
	if cfg.Admin == cfg.Account {
		return nil, errors.New("config: LEDGER_ADMIN and LEDGER_ACCOUNT must differ")
	}
	return &cfg, nil
}
