package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/httpserver"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/middleware"
)

// Run bootstraps the VidTube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, os.Stdout, args[1:])
	case "seed":
		return runSeed(ctx, os.Stdout, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := store.Disconnect(disconnectCtx); err != nil {
			logger.Warn("disconnect mongo", "error", err)
		}
	}()

	if cfg.EnsureIndexes {
		created, err := db.EnsureIndexes(ctx, store.Database())
		if err != nil {
			return err
		}
		logger.Info("indexes ensured", "count", len(created))
	}

	deps, cleanup, err := buildDependencies(ctx, store.Database(), store, cfg, logger)
	if err != nil {
		return err
	}

	handler := middleware.RequestLogger(logger)(handlers.NewRouter(deps))
	srv := httpserver.New(cfg.AppPort, handler, httpserver.DefaultTimeouts, logger)

	logger.Info("starting http server", "port", cfg.AppPort, "database", cfg.MongoDatabase)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case runErr = <-srvErr:
		if runErr != nil {
			logger.Error("http server stopped", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, srv.Shutdown(shutdownCtx), cleanup(shutdownCtx))
}

// runMigrations applies or reports the index catalogue. Collections are
// created implicitly by MongoDB, so indexes are the only schema we own.
func runMigrations(ctx context.Context, out io.Writer, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	store, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer store.Disconnect(context.Background())

	if command == "status" {
		statuses, err := db.ListIndexStatus(ctx, store.Database())
		if err != nil {
			return err
		}
		for _, s := range statuses {
			mark := " "
			if s.Present {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %s.%s\n", mark, s.Collection, s.Name)
		}
		return nil
	}

	created, err := db.EnsureIndexes(ctx, store.Database())
	for _, name := range created {
		fmt.Fprintf(out, "ensured index %s\n", name)
	}
	return err
}

func runSeed(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	seedName := args[0]
	if !strings.HasSuffix(seedName, ".json") {
		seedName = fmt.Sprintf("%s_seed.json", seedName)
	}

	contents, err := os.ReadFile(filepath.Join(cfg.SeedDir, seedName))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", seedName, err)
	}

	seed, err := parseSeed(contents)
	if err != nil {
		return fmt.Errorf("parse seed %s: %w", seedName, err)
	}

	store, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer store.Disconnect(context.Background())

	inserted, err := seed.apply(ctx, store.Database())
	for _, collection := range seed.collections() {
		if n, ok := inserted[collection]; ok {
			fmt.Fprintf(out, "seeded %d documents into %s\n", n, collection)
		}
	}
	if err != nil {
		return fmt.Errorf("apply seed %s: %w", seedName, err)
	}

	fmt.Fprintf(out, "applied seed %s\n", seedName)
	return nil
}
