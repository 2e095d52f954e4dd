package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/coursenotes/internal/api"
	"example.com/coursenotes/internal/auth"
	"example.com/coursenotes/internal/config"
	"example.com/coursenotes/internal/db"
	"example.com/coursenotes/internal/identity"
	"example.com/coursenotes/internal/logging"
	"example.com/coursenotes/internal/notes"
	"example.com/coursenotes/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("notes api stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(ctx, db.Options{
		Driver:          cfg.DBDriver,
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		Migrate:         cfg.DBMigrate,
	})
	if err != nil {
		return err
	}
	defer dbConn.Close()

	directory := identity.NewSQLDirectory(dbConn.SQL, dbConn.Driver)
	authn, err := auth.New([]byte(cfg.JWTSecret), directory,
		auth.WithTTL(cfg.JWTTTL), auth.WithLogger(logger))
	if err != nil {
		return err
	}

	store, err := notes.Open(cfg.NotesFile, notes.WithLogger(logger))
	if err != nil {
		return err
	}
	svc := service.New(store, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHandlers(svc, authn, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notes api listening", "addr", cfg.HTTPAddr, "notes_file", store.Path(), "db_driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.NotesWatch {
		g.Go(func() error { return store.Watch(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
