package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/homework-sync/internal/config"
	"github.com/BuzzLyutic/homework-sync/internal/controller"
	"github.com/BuzzLyutic/homework-sync/internal/handler"
	"github.com/BuzzLyutic/homework-sync/internal/repo"
	"github.com/BuzzLyutic/homework-sync/internal/store"
	"github.com/BuzzLyutic/homework-sync/internal/worker"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Подключаем логгер
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
	logger.Info("Server stopped successfully!")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	screen := handler.NewScreen()

	var (
		st     store.Store
		remote *store.RemoteStore
	)

	switch cfg.Backend {
	case config.BackendLocal:
		local, err := store.NewLocalStore(store.NewFileStorage(cfg.LocalPath), logger)
		if err != nil {
			return err
		}
		logger.Info("Using local store", zap.String("path", cfg.LocalPath))
		if cfg.WatchLocal {
			g.Go(func() error {
				// без наблюдения сервис продолжает работать, просто не видит чужих правок
				if err := local.Watch(ctx); err != nil {
					logger.Warn("local store watch stopped", zap.Error(err))
				}
				return nil
			})
		}
		st = local

	case config.BackendRemote:
		// Подключаем БД
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("Successfully connected to the Database!")

		homework := repo.NewHomeworkRepo(pool)
		if cfg.Migrate {
			if err := homework.Migrate(ctx); err != nil {
				return err
			}
		}

		// Пул не отменяется вместе с ctx: при остановке он дописывает принятые записи
		writes := worker.NewPool(logger, cfg.WorkerCount, cfg.QueueDepth)
		writes.Start(context.WithoutCancel(ctx))
		defer writes.Stop()

		remote = store.NewRemoteStore(homework, cfg.Namespace, writes, logger,
			store.WithReconnectDelay(cfg.ReconnectDelay))
		g.Go(func() error { return remote.Run(ctx) })
		st = remote
	}

	ctrl := controller.New(st, controller.NewView(), screen, logger)
	if remote != nil {
		defer remote.OnFailure(ctrl.ReportFailure)()
	}
	ctrl.Start()
	defer ctrl.Stop()

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.NewHomeworkHandler(ctrl, screen, logger).Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
