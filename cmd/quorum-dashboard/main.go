package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/health"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/authstate"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/deviceauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/oauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/tokens"
)

// Version is set by the build process
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse Redis URL")
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}

	db, err := credentials.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open credential database")
	}
	defer db.Close()

	client, err := oauth.NewClient(oauth.Config{
		ClientID:               cfg.VendorClientID,
		AuthorizationURL:       cfg.VendorAuthorizationURL,
		TokenURL:               cfg.VendorTokenURL,
		DeviceAuthorizationURL: cfg.VendorDeviceAuthURL,
		Scopes:                 cfg.OAuthScopes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure vendor client")
	}

	states := authstate.NewRedisStore(redisClient)
	attempts := deviceauth.NewRedisStore(redisClient)
	creds := credentials.NewSQLiteStore(db)

	flows := authflow.NewService(client, states, attempts, creds,
		authflow.WithProviderType(cfg.ProviderType),
		authflow.WithStateTTL(cfg.StateTTL),
	)
	manager := tokens.NewManager(creds, client,
		tokens.WithExpiryMargin(cfg.ExpiryMargin),
		tokens.WithRefreshableTypes(cfg.ProviderType),
	)

	healthHandler := health.New(Version).
		WithCheck("state_store", states).
		WithCheck("attempt_store", attempts).
		WithCheck("credential_store", creds).
		WithCheck("vendor", client)

	srv := newServer(cfg, flows, manager, healthHandler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go refreshLoop(sweepCtx, manager, cfg.RefreshInterval)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal().Err(err).Msg("server failed")

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("starting shutdown")
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Err(err).Msg("graceful shutdown failed")
			if err := httpServer.Close(); err != nil {
				log.Err(err).Msg("forced close failed")
			}
		}
	}
}

// refreshLoop sweeps expired credentials in the background so tokens stay
// fresh even without caller traffic.
func refreshLoop(ctx context.Context, manager *tokens.Manager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := manager.RefreshExpired(ctx)
			if err != nil {
				log.Err(err).Msg("refresh sweep failed")
				continue
			}
			refreshed := 0
			for _, r := range results {
				if r.Refreshed {
					refreshed++
				}
			}
			log.Debug().Int("swept", len(results)).Int("refreshed", refreshed).
				Msg("refresh sweep completed")
		}
	}
}
