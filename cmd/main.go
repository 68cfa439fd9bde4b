package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/globot/syncbot/config"
	"github.com/globot/syncbot/internal/api"
	"github.com/globot/syncbot/internal/classify"
	"github.com/globot/syncbot/internal/consumer"
	"github.com/globot/syncbot/internal/db"
	"github.com/globot/syncbot/internal/delivery"
	"github.com/globot/syncbot/internal/pkg/kafka"
	"github.com/globot/syncbot/internal/pkg/seen"
	"github.com/globot/syncbot/internal/repository"
	"github.com/globot/syncbot/internal/service"
	"github.com/globot/syncbot/internal/translate"
	"github.com/globot/syncbot/middleware/jwt"
	logger "github.com/globot/syncbot/middleware/log"
	"github.com/globot/syncbot/utils/ratelimit"
	"github.com/globot/syncbot/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Close()

	dsn := db.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := db.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}

	redisClient, err := db.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		log.Fatalf("failed to init redis: %v", err)
	}

	bindingRepo := repository.NewBindingRepository(postgres)
	warningRepo := repository.NewWarningRepository(postgres)

	limiter := ratelimit.NewRedisLimiter(redisClient, zlog.Logger)
	translator := translate.NewClient(&cfg.Translate, redisClient, limiter, cfg.RateLimit.TranslateQPS)
	classifier := classify.NewClient(&cfg.Moderation, limiter, cfg.RateLimit.ClassifyQPS)
	deliverer := delivery.NewWebhookDeliverer(
		cfg.Platform.APIBase,
		cfg.Platform.BotToken,
		time.Duration(cfg.Platform.TimeoutSec)*time.Second,
	)

	graph := service.NewChannelGraph(bindingRepo, translator)
	ledger := service.NewWarningLedger(warningRepo)
	stats := service.NewStatsAggregator(bindingRepo, warningRepo)
	gate := service.NewModerationGate(
		classifier, graph, ledger, deliverer, zlog,
		cfg.Moderation.Enabled, cfg.Moderation.Threshold, cfg.Moderation.FailClosed,
	)
	dispatcher := service.NewRelayDispatcher(
		graph, gate, translator, deliverer,
		seen.NewFilter(0, 0), zlog,
		time.Duration(cfg.Relay.TranslateTimeoutSec)*time.Second,
		time.Duration(cfg.Relay.DeliverTimeoutSec)*time.Second,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageConsumer := consumer.NewMessageConsumer(dispatcher, zlog)
	if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, messageConsumer, zlog); err != nil {
		log.Fatalf("failed to start consumer: %v", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Fatalf("failed to init kafka producer: %v", err)
	}
	defer producer.Close()

	idGen, err := snowflake.NewGenerator(cfg.Server.WorkerID)
	if err != nil {
		log.Fatalf("failed to init id generator: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	admin := api.NewAdminHandler(graph, ledger, stats, producer, idGen)
	api.RegisterRoutes(r, tokenManager, admin)

	go func() {
		if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			log.Fatalf("failed to run http server: %v", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
}
