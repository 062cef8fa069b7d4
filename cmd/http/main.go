package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/configs"
	"github.com/hilthontt/duet/internal/infrastructure/events"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/messaging"
	"github.com/hilthontt/duet/internal/infrastructure/metrics"
	"github.com/hilthontt/duet/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/duet/internal/infrastructure/repository"
	"github.com/hilthontt/duet/internal/infrastructure/tracing"
	"github.com/hilthontt/duet/internal/infrastructure/ws"
	"github.com/hilthontt/duet/internal/presentation/api"
	"github.com/hilthontt/duet/internal/presentation/handler/health"
	"github.com/hilthontt/duet/internal/presentation/handler/messages"
	"github.com/hilthontt/duet/internal/presentation/handler/rooms"
	"github.com/hilthontt/duet/internal/presentation/handler/signaling"
)

const (
	serviceName = "duet-signaling"
)

// @title        Duet Signaling API
// @version      1.0
// @description  Signaling relay for two-party WebRTC calls.
// @BasePath     /api
func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	tracerCfg := tracing.NewDefaultConfig(serviceName)
	tracerCfg.Enabled = cfg.Tracing.Enabled
	tracerCfg.Endpoint = cfg.Tracing.Endpoint
	tracerCfg.Environment = cfg.Tracing.Environment

	shutdownTracer, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	m := metrics.New()

	roomRepository := repository.NewRoomRepository(cfg.RoomStore.Capacity, cfg.RoomStore.IdleExpiry)
	messageRepository := repository.NewMessageRepository(cfg.MessageStore.Capacity)

	var (
		publisher      domain.RoomEventPublisher = events.NopPublisher{}
		closePublisher                           = func(context.Context) {}
	)
	if cfg.Messaging.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Messaging.URI, cfg.Messaging.Exchange)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}

		roomPublisher := events.NewRoomPublisher(rabbitmq, cfg.Messaging.Buffer, logger)
		publisher = roomPublisher
		closePublisher = func(ctx context.Context) {
			if err := roomPublisher.Close(ctx); err != nil {
				logger.Warn(logging.RabbitMQ, logging.Shutdown, "room publisher did not drain", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
			rabbitmq.Close()
		}

		logger.Info(logging.RabbitMQ, logging.Startup, "publishing room events", map[logging.ExtraKey]any{
			"Exchange": cfg.Messaging.Exchange,
		})
	}

	registry := ws.NewRegistry(logger, m)
	core := ws.NewCore(ws.CoreConfig{
		HangUpGrace: cfg.Signaling.HangUpGrace,
		Shards:      cfg.Signaling.Shards,
	}, registry, messageRepository, publisher, m, logger)

	clientCfg := ws.ClientConfig{
		SendBuffer:        cfg.Signaling.SendBuffer,
		MaxMessageBytes:   cfg.Signaling.MaxMessageBytes,
		MessagesPerSecond: cfg.Signaling.MessagesPerSecond,
		MessageBurst:      cfg.Signaling.MessageBurst,
		WriteWait:         cfg.Signaling.WriteWait,
		PongWait:          cfg.Signaling.PongWait,
	}

	roomHandler := rooms.NewHandler(roomRepository, logger)
	healthHandler := health.NewHandler(registry)
	messageHandler := messages.NewHandler(messageRepository, logger)
	signalingHandler := signaling.NewHandler(core, clientCfg, cfg.HTTP.AllowedOrigins, logger)

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	app := api.NewApplication(*cfg, roomHandler, healthHandler, messageHandler, signalingHandler, logger, rl, m)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	err = app.Run(mux, func(ctx context.Context) {
		if err := core.Stop(ctx); err != nil {
			logger.Warn(logging.Signaling, logging.Shutdown, "signaling core did not stop cleanly", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		closePublisher(ctx)
		_ = rl.Close()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn(logging.General, logging.Shutdown, "tracer shutdown failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "server stopped", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
