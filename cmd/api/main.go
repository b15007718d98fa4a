package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/api"
	"github.com/safar/stockbill/internal/billing"
	"github.com/safar/stockbill/internal/config"
	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/journal"
	"github.com/safar/stockbill/internal/mongostore"
	"github.com/safar/stockbill/internal/store"
	"github.com/safar/stockbill/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

type catalogStore interface {
	api.ProductStore
	billing.Catalog
}

type ledgerStore interface {
	api.BillStore
	billing.BillWriter
	billing.BillNumberSource
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(cfg.Telemetry, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("set up telemetry")
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.WithError(err).Warn("shut down telemetry")
		}
	}()

	metrics, err := telemetry.NewBillingMetrics(nil)
	if err != nil {
		log.WithError(err).Fatal("create billing metrics")
	}

	var (
		catalog   catalogStore
		bills     ledgerStore
		analytics api.Analytics
	)
	switch cfg.Store.Driver {
	case config.DriverMongo:
		ms, err := mongostore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, log)
		if err != nil {
			log.WithError(err).Fatal("connect to mongo")
		}
		defer ms.Close(context.Background())

		catalog, bills = ms.Catalog(), ms.Ledger()
		log.WithField("database", cfg.Store.MongoDatabase).Info("connected to mongo")

	default:
		db, err := database.NewConnection(ctx, &cfg.Database, log)
		if err != nil {
			log.WithError(err).Fatal("connect to database")
		}
		defer db.Close()

		catalog = store.NewCatalog(db, cfg.Database.URL, log)
		bills = store.NewLedger(db, cfg.Database.URL, log)
		analytics = store.NewAnalytics(db)
		log.Info("connected to postgres")
	}

	engine := billing.NewEngine(catalog, log, metrics)

	var (
		cartJournal  billing.Journal
		reservations billing.ReservationJournal
	)
	if cfg.Redis.URL != "" {
		j, err := journal.Open(ctx, cfg.Redis.URL, cfg.Redis.Namespace)
		if err != nil {
			log.WithError(err).Fatal("connect to redis")
		}
		defer j.Close()

		cartJournal, reservations = j, j
		log.WithField("namespace", cfg.Redis.Namespace).Info("reservation journal enabled")
	}

	numberer := billing.NewNumberer(bills, cfg.Billing.BillPrefix, cfg.Billing.BillNumberWidth)
	if err := numberer.CheckPrefix(ctx); err != nil {
		log.WithError(err).Fatal("check bill prefix")
	}

	registry := billing.NewRegistry(catalog, engine, cartJournal, log)
	committer := billing.NewCommitter(
		numberer,
		bills,
		billing.CommitterOptions{
			MaxAttempts: cfg.Billing.CommitMaxAttempts,
			Renderer:    billing.LogRenderer{Log: log},
			Recorder:    metrics,
			Logger:      log,
		},
	)

	reaper := billing.NewReaper(registry, reservations, engine, cfg.Billing.CartTTL, metrics, log)
	go reaper.Run(ctx, cfg.Billing.ReaperInterval)

	server := api.New(api.Deps{
		Products:  catalog,
		Bills:     bills,
		Analytics: analytics,
		Carts:     registry,
		Committer: committer,
		Logger:    log,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Server.Port,
			"driver": cfg.Store.Driver,
		}).Info("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	committer.Wait()
}
