// cmd/historian pops session events off the redis queue and persists them to postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/taboo/internal/cache"
	"github.com/jason-s-yu/taboo/internal/config"
	"github.com/jason-s-yu/taboo/internal/database"
	"github.com/jason-s-yu/taboo/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.LoadHistorian()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.WithError(err).Fatal("postgres unavailable")
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewEventQueue(rdb, cfg.Redis.QueueName),
		database.NewEventSink(pool),
		historian.Options{
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval,
			PopTimeout:    cfg.PopTimeout,
		},
		logger.WithField("queue", cfg.Redis.QueueName),
	)
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian exited")
	}
}
