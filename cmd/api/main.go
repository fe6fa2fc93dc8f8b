package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/adapter/repo"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/http/handlers"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/http/httpapi"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra/geoip"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library/local"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/maintenance"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/usage"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/videogen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	kv, err := local.Open(cfg.LocalStorePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.LocalStorePath).Msg("failed to open local store")
	}
	defer kv.Close()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	gateway := videogen.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, nil, logger)
	jobs := repo.NewGenerationJobRepository(sqlRunner)
	advisory := usage.NewAdvisory(kv)
	quota := usage.NewQuota(sqlRunner, cfg.DailyVideoQuota)

	app := handlers.NewApp(sqlRunner, kv, jobs, advisory, quota, gateway, logger, cfg.PollInterval, cfg.PollMaxAttempts)
	router := httpapi.NewRouter(app, cfg, lookup)
	server := infra.NewHTTPServer(cfg, router)

	scheduler := maintenance.NewScheduler(jobs, advisory, app, cfg.JobRetention, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start maintenance scheduler")
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		scheduler.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
