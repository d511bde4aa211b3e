package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/synaptica-ai/healthrisk/pkg/common/config"
	"github.com/synaptica-ai/healthrisk/pkg/common/database"
	"github.com/synaptica-ai/healthrisk/pkg/common/kafka"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/gateway/middleware"
	"github.com/synaptica-ai/healthrisk/pkg/observability/metrics"
	"github.com/synaptica-ai/healthrisk/pkg/serving"
	"github.com/synaptica-ai/healthrisk/pkg/serving/artifacts"
	"github.com/synaptica-ai/healthrisk/pkg/serving/predictor"
	"golang.org/x/sync/errgroup"
)

func main() {
	config.LoadDotEnv()
	logger.Init()
	cfg := config.Load()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	riskPredictor := predictor.NewPredictor(nil)
	reloader := artifacts.NewReloader(cfg.ArtifactDir, riskPredictor, serving.MetricsHook())

	var releases serving.ReleaseStore
	if cfg.PostgresEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		defer database.ClosePostgres()

		repo := serving.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate release audit table")
		}
		reloader.OnReload(repo.Hook())
		releases = repo
	}

	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaArtifactTopic)
		defer producer.Close()
		reloader.OnReload(serving.PublishHook(producer))
	}

	// No bundle, no service.
	if _, err := reloader.Reload(ctx, artifacts.TriggerStartup); err != nil {
		logger.Log.WithError(err).WithField("dir", cfg.ArtifactDir).Fatal("Failed to load artifact bundle")
	}

	var limiter middleware.Limiter = middleware.NewTokenBucket(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if cfg.RedisEnabled {
		limiter = middleware.NewRedisLimiter(database.GetRedis(cfg), cfg.RateLimitPrefix, cfg.RateLimitBurst)
		defer database.CloseRedis()
	}

	router := mux.NewRouter()
	serving.NewService(riskPredictor, releases, cfg.PredictTimeout).Routes(router)

	var handler http.Handler = router
	handler = middleware.RateLimit(limiter)(handler)
	handler = middleware.BodyLimit(cfg.MaxRequestBody)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)
	handler = handlers.ProxyHeaders(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.ArtifactWatch {
		watcher := artifacts.NewWatcher(reloader, artifacts.DefaultDebounce)
		group.Go(func() error {
			if err := watcher.Run(groupCtx); err != nil {
				// Serving continues on the loaded bundle.
				logger.Log.WithError(err).Error("Artifact watcher stopped")
			}
			return nil
		})
	}

	if cfg.KafkaEnabled {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaArtifactTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		group.Go(func() error {
			err := consumer.Consume(groupCtx, serving.ReloadOnPublished(reloader))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Artifact event consumer stopped")
			}
			return nil
		})
	}

	group.Go(func() error {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"version": riskPredictor.Current().Info.Version,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Log.Info("Shutting down Serving Service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("Server forced to shutdown")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Log.WithError(err).Error("Serving Service failed")
	}
	logger.Log.Info("Serving Service stopped")
}
