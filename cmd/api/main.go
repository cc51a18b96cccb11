package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/greenmandi/hubstock/internal/config"
	"github.com/greenmandi/hubstock/internal/httpx"
	"github.com/greenmandi/hubstock/internal/hubs"
	kafkax "github.com/greenmandi/hubstock/internal/kafka"
	"github.com/greenmandi/hubstock/internal/orders"
	"github.com/greenmandi/hubstock/internal/postgres"
	"github.com/greenmandi/hubstock/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per notification topic
	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmed, 1024, log)
	pConfirmed.Start(ctx)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFailed, 1024, log)
	pFailed.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log)
	pCancelled.Start(ctx)

	// Engine wiring
	repo := hubs.NewPostgresRepo(db)
	store := &hubs.Store{Repo: repo, Attempts: cfg.ReserveAttempts, Backoff: cfg.ReserveBackoff, Log: log}
	svc := &orders.Service{
		Orders:    orders.NewPostgresRepo(db),
		Hubs:      repo,
		Inventory: store,
		Matcher:   &hubs.Matcher{Repo: repo, Log: log},
		Resolver:  &hubs.Resolver{Repo: repo, Log: log},
		Reserver:  &hubs.Coordinator{Repo: repo, Attempts: cfg.ReserveAttempts, Backoff: cfg.ReserveBackoff, Log: log},
		Notifier: &orders.KafkaNotifier{
			Confirmed: pConfirmed,
			Failed:    pFailed,
			Cancelled: pCancelled,
			Service:   cfg.ServiceName,
		},
		DeliveryFeePaise: cfg.DeliveryFeePaise,
		Log:              log,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Redis: rdb}).Register(router)
	(&httpx.InventoryHandler{Store: store}).Register(router)

	// Periodic expiry sweep
	go func() {
		t := time.NewTicker(cfg.ExpirySweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if n, err := store.ExpireBatches(ctx, now.UTC()); err != nil {
					log.Warn("expiry sweep", zap.Error(err))
				} else if n > 0 {
					log.Info("expiry sweep", zap.Int("expired", n))
				}
			}
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pConfirmed.Close()
	pFailed.Close()
	pCancelled.Close()
	cancel()
	pConfirmed.WaitClosed()
	pFailed.WaitClosed()
	pCancelled.WaitClosed()
}
