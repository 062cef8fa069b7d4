package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/hilthontt/duet/docs"
	"github.com/hilthontt/duet/internal/infrastructure/configs"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/metrics"
	"github.com/hilthontt/duet/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/duet/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/duet/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/duet/internal/presentation/handler/rooms"
	signalingHandler "github.com/hilthontt/duet/internal/presentation/handler/signaling"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serverName = "duet-http"

type Application struct {
	config           configs.Config
	roomHandler      *roomHandler.Handler
	healthHandler    *healthHandler.Handler
	messagesHandler  *messagesHandler.Handler
	signalingHandler *signalingHandler.Handler
	logger           logging.Logger
	ratelimiter      ratelimiter.Limiter
	metrics          *metrics.Metrics
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	messagesHandler *messagesHandler.Handler,
	signalingHandler *signalingHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	return &Application{
		config:           config,
		roomHandler:      roomHandler,
		healthHandler:    healthHandler,
		messagesHandler:  messagesHandler,
		signalingHandler: signalingHandler,
		logger:           logger,
		ratelimiter:      ratelimiter,
		metrics:          metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	// Signaling sockets are long lived and stay outside the request timeout
	// and the REST rate limiter.
	r.Get("/chat", app.signalingHandler.ServeWS)
	r.Get("/ws", app.signalingHandler.ServeWS)

	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(app.rateLimiterMiddleware)

		r.Route("/room", func(r chi.Router) {
			r.Post("/", app.roomHandler.CreateRoomHandler)
			r.Get("/{roomId}", app.roomHandler.GetRoomHandler)
			r.Post("/{roomId}/join", app.roomHandler.JoinRoomHandler)
			r.Post("/{roomId}/leave", app.roomHandler.LeaveRoomHandler)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", app.messagesHandler.GetAllMessagesHandler)
			r.Get("/{roomId}", app.messagesHandler.GetRoomMessagesHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	return otelhttp.NewHandler(r, serverName)
}

// Run serves mux until SIGINT or SIGTERM. onShutdown runs after the listener
// stops accepting requests and before Run returns.
func (app *Application) Run(mux http.Handler, onShutdown func(ctx context.Context)) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"Signal": s.String(),
		})

		app.healthHandler.Drain()
		err := srv.Shutdown(ctx)
		if onShutdown != nil {
			onShutdown(ctx)
		}

		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	return nil
}
