package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/likes"
	"github.com/videotube/backend/internal/media"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/repositories"
	"github.com/videotube/backend/internal/storage"
	"github.com/videotube/backend/internal/views"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned ingestor must be shut down by the caller once the
// server stops accepting uploads.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *media.AssetIngestor, error) {
	userRepo := repositories.NewPostgresUserRepository(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)
	subscriptionRepo := repositories.NewPostgresSubscriptionRepository(pool)
	historyRepo := repositories.NewPostgresHistoryRepository(pool)

	issuer := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessions := auth.NewManager(userRepo, issuer, repositories.NewPostgresTokenStore(pool))

	likeEngine := likes.NewEngine(repositories.NewPostgresLikeRepository(pool), repositories.NewPostgresTargetResolver(pool))

	viewBuilder := views.NewBuilder(userRepo, subscriptionRepo, historyRepo, videoRepo, views.NewProfileCache(cfg.ProfileCacheTTL))

	objectStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	prober := media.NewFFProbe("ffprobe", 30*time.Second)
	ingestor := media.NewAssetIngestor(objectStore, prober, videoRepo, media.AssetIngestorConfig{}, logger)

	deps := handlers.Dependencies{
		Users:         userRepo,
		Sessions:      sessions,
		TokenParser:   issuer,
		Videos:        videoRepo,
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Likes:         likeEngine,
		Subscriptions: subscriptionRepo,
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		History:       historyRepo,
		Views:         viewBuilder,
		Storage:       objectStore,
		Ingestor:      ingestor,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateBurst, 10*time.Minute),
	}

	return deps, ingestor, nil
}
