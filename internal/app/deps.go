package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/queries"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// cleanupFunc releases what buildDependencies started.
type cleanupFunc func(ctx context.Context) error

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, database *mongo.Database, health handlers.HealthChecker, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, cleanupFunc, error) {
	var (
		blacklist auth.Blacklist
		rdb       *redis.Client
	)
	if cfg.Redis.Addr != "" {
		client, err := auth.NewRedisClient(ctx, auth.RedisConfig{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		rdb = client
		blacklist = auth.NewRedisBlacklist(client)
		logger.Info("token blacklist backed by redis", "addr", cfg.Redis.Addr)
	} else {
		blacklist = auth.NewInMemoryBlacklist()
		logger.Warn("token blacklist kept in memory; revocations are lost on restart")
	}

	media, err := storage.New(ctx, storage.Config{
		Driver:        cfg.ObjectStore.Driver,
		Bucket:        cfg.ObjectStore.Bucket,
		Region:        cfg.ObjectStore.Region,
		Endpoint:      cfg.ObjectStore.Endpoint,
		AccessKey:     cfg.ObjectStore.AccessKey,
		SecretKey:     cfg.ObjectStore.SecretKey,
		UseSSL:        cfg.ObjectStore.UseSSL,
		PublicBaseURL: cfg.ObjectStore.PublicBaseURL,
	})
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	users := repositories.NewMongoUserRepository(database)
	videoRepo := repositories.NewMongoVideoRepository(database)

	sessions := auth.NewManager(auth.Options{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	}, repositories.NewMongoSessionStore(database), blacklist)

	recorder := videos.NewViewRecorder(videoRepo, users, videos.RecorderConfig{
		QueueSize: cfg.Views.QueueSize,
		Workers:   cfg.Views.Workers,
	}, logger)

	var prober videos.Prober
	if cfg.FFProbePath != "" {
		prober = videos.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	}

	deps := handlers.Dependencies{
		Users:     users,
		Sessions:  sessions,
		Videos:    videoRepo,
		Comments:  repositories.NewMongoCommentRepository(database),
		Tweets:    repositories.NewMongoTweetRepository(database),
		Playlists: repositories.NewMongoPlaylistRepository(database),
		Edges:     repositories.NewMongoEdgeRepository(database),
		Reads:     queries.NewStore(database, queries.Options{SuggestionTTL: cfg.SuggestionTTL}),
		Media:     media,
		Prober:    prober,
		Views:     recorder,
		Health:    health,
		AuthLimiter: middleware.NewKeyedLimiter(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Window,
			cfg.RateLimit.Burst,
			10*cfg.RateLimit.Window,
		),
		CORSOrigin:   cfg.CORSOrigin,
		CookieSecure: cfg.Auth.CookieSecure,
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := recorder.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain view recorder: %w", err))
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
		return errors.Join(errs...)
	}

	return deps, cleanup, nil
}
