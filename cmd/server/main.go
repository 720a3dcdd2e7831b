// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/cache"
	"github.com/jason-s-yu/taboo/internal/config"
	"github.com/jason-s-yu/taboo/internal/database"
	"github.com/jason-s-yu/taboo/internal/game"
	"github.com/jason-s-yu/taboo/internal/handlers"
	"github.com/jason-s-yu/taboo/internal/store"
	"github.com/jason-s-yu/taboo/internal/timer"
	"github.com/jason-s-yu/taboo/internal/words"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer cleanup()

	corpus, err := words.LoadCorpus(cfg.WordsFile)
	if err != nil {
		logger.WithError(err).Fatal("word corpus unavailable")
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	deps.Words = words.NewPool(corpus, rand.New(rand.NewSource(seed)))
	deps.Rand = rand.New(rand.NewSource(seed + 1))

	hub := handlers.NewHub(logger)
	deps.Broadcaster = hub
	deps.Timer = timer.NewSessionTimer()
	deps.Logger = logger

	engine := game.NewEngine(deps, game.Config{
		Bounds:       cfg.Bounds(),
		IdleTimeout:  cfg.SessionIdleTimeout,
		StoreTimeout: cfg.StoreTimeout,
	})
	gs := handlers.NewGameServer(engine, hub, logger, cfg.MessageRate, cfg.MessageBurst)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(gs, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "store": cfg.StoreBackend}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		engine.Close()
		return err
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
	}
	logger.Info("shut down")
}

// buildDeps wires the store backend. Postgres owns lobbies and users for both the postgres
// and redis backends; the memory backend reads them from the seed file.
func buildDeps(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (game.Deps, func(), error) {
	var (
		deps    game.Deps
		pool    *pgxpool.Pool
		rdb     *redis.Client
		cleanup = func() {
			if rdb != nil {
				rdb.Close()
			}
			if pool != nil {
				pool.Close()
			}
		}
		err error
	)

	if cfg.StoreBackend == config.BackendMemory {
		lobbies, users, err := store.LoadSeed(cfg.SeedFile)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Store, deps.Lobbies, deps.Users = store.NewMemoryStore(), lobbies, users
	} else {
		if pool, err = database.Connect(ctx, cfg.Postgres, logger); err != nil {
			return deps, cleanup, err
		}
		deps.Lobbies = database.NewLobbyProvider(pool)
		deps.Users = database.NewUserDirectory(pool)
		deps.Store = database.NewSessionStore(pool)
	}

	if cfg.StoreBackend == config.BackendRedis || cfg.PublishEvents {
		if rdb, err = cache.Connect(ctx, cfg.Redis); err != nil {
			return deps, cleanup, err
		}
	}
	if cfg.StoreBackend == config.BackendRedis {
		deps.Store = cache.NewSessionStore(rdb, cfg.SessionTTL)
	}
	if cfg.PublishEvents {
		deps.Recorder = cache.NewEventQueue(rdb, cfg.Redis.QueueName)
	}
	return deps, cleanup, nil
}
