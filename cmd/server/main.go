package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	drawledger "github.com/Ashenafi-pixel/prize-draw-ledger"
	"github.com/Ashenafi-pixel/prize-draw-ledger/config"
	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
	"github.com/Ashenafi-pixel/prize-draw-ledger/metrics"
	"github.com/Ashenafi-pixel/prize-draw-ledger/payment"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
	"github.com/Ashenafi-pixel/prize-draw-ledger/reconcile"
	"github.com/Ashenafi-pixel/prize-draw-ledger/server"
	"github.com/Ashenafi-pixel/prize-draw-ledger/store"
	"github.com/Ashenafi-pixel/prize-draw-ledger/token"
)

func main() {
	// Load .env from cwd or the project root
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := lottery.Options{
		Admin:      cfg.Admin,
		Account:    cfg.Account,
		UnitPrice:  cfg.UnitPrice,
		Seed:       cfg.EntropySeed,
		MaxTickets: cfg.MaxTickets,
		Bus:        events.NewBus(256),
		Metrics:    metrics.New(),
		Logger:     log,
	}

	if cfg.PrizesFile != "" {
		opts.Prizes, err = prize.LoadFile(cfg.PrizesFile)
		if err != nil {
			log.WithError(err).Fatal("load prize table")
		}
	}

	var local *token.Memory
	if cfg.TokenEndpoint != "" {
		opts.Token = token.NewOperatorClient(cfg.TokenEndpoint, cfg.TokenSecret)
		log.WithField("endpoint", cfg.TokenEndpoint).Info("using remote prize token")
	} else {
		local, err = newLocalToken(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("seed in-process token")
		}
		opts.Token = local
		log.WithFields(logrus.Fields{"supply": cfg.TokenSupply, "float": cfg.InitialFloat}).Info("using in-process prize token")
	}

	if cfg.PlatformURL != "" {
		opts.Wallet = payment.NewPlatformClient(cfg.PlatformURL, cfg.PlatformServiceToken, cfg.PlatformCurrency)
	}

	db, err := drawledger.GetDB(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if db != nil {
		pg := store.NewPostgres(db, cfg.Account)
		if err := pg.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("migrate database")
		}
		opts.Store = pg
	} else {
		opts.Store = store.NewFileStore(cfg.DataDir)
	}

	svc, err := lottery.New(ctx, opts)
	if err != nil {
		log.WithError(err).Fatal("open ledger")
	}

	if local != nil {
		if err := alignFloat(ctx, local, cfg.Admin, cfg.Account, svc.TokenFloat()); err != nil {
			log.WithError(err).Fatal("restore in-process token float")
		}
	}

	recon := reconcile.New(svc, opts.Metrics, log)
	if cfg.ReconcileInterval > 0 {
		if err := recon.Start(cfg.ReconcileInterval); err != nil {
			log.WithError(err).Fatal("start reconciler")
		}
		defer func() {
			if err := recon.Stop(); err != nil {
				log.WithError(err).Warn("stop reconciler")
			}
		}()
	}

	srv := server.New(cfg, svc, opts.Bus, opts.Metrics, recon, log)
	if local != nil {
		srv.WithTokenIssuer(local)
	}
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped")
	}
}

// newLocalToken mints the supply to the admin and hands InitialFloat to the
// ledger account, which a fresh ledger books as its float.
func newLocalToken(ctx context.Context, cfg *config.Config) (*token.Memory, error) {
	tok := token.NewMemory(cfg.Admin, cfg.TokenSupply)
	if err := tok.Transfer(ctx, cfg.Admin, cfg.Account, cfg.InitialFloat); err != nil {
		return nil, err
	}
	return tok, nil
}

// alignFloat moves tokens between admin and account until the account holds
// exactly float. The in-process token starts over on every boot while a
// restored ledger keeps the float it had booked.
func alignFloat(ctx context.Context, tok *token.Memory, admin, account string, float uint64) error {
	bal, err := tok.BalanceOf(ctx, account)
	if err != nil {
		return err
	}
	switch {
	case bal < float:
		return tok.Transfer(ctx, admin, account, float-bal)
	case bal > float:
		return tok.Transfer(ctx, account, admin, bal-float)
	}
	return nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
