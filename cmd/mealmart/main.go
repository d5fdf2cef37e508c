package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/avdeev/mealmart/internal"
)

const (
	dispatchWorkers   = 4
	dispatchQueueSize = 256
)

func main() {
	//decimals at json as string
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	cfg := NewConfig()
	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	sugaredLogger := z.Sugar()

	RegisterMetrics()

	repository, err := NewRepository(cfg.DatabaseURI, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	clock := NewClock()

	dispatcher := NewDispatchService(repository, sugaredLogger, AnalyticsConfig{
		MeasurementID: cfg.GaMeasurementID,
		APISecret:     cfg.GaAPISecret,
		PixelID:       cfg.MetaPixelID,
		AccessToken:   cfg.MetaAccessToken,
	}, dispatchWorkers, dispatchQueueSize)

	service := NewService(repository, dispatcher, clock, sugaredLogger)
	handlers := NewHandlers(service, sugaredLogger, cfg.JWTSecret)

	limiter := NewRateLimiter(clock)
	limit := RateLimit(limiter, LimitConfig{MaxRequests: 30, Window: time.Minute})

	stop := make(chan struct{})
	go limiter.RunSweeper(stop)

	scheduler := NewScheduler(repository, clock, sugaredLogger, cfg.SchedulerInterval, cfg.DefaultAdminID)
	go scheduler.Run(stop)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddress, promhttp.Handler()); err != nil {
			sugaredLogger.Errorf("metrics listener: %s", err)
		}
	}()

	app := fiber.New()
	app.Use(logger.New())

	api := app.Group("/api")

	customers := api.Group("/customers")
	customers.Post("/", limit, handlers.CreateCustomer)
	customers.Get("/:id", handlers.GetCustomer)
	customers.Get("/:id/orders", handlers.GetOrders)

	orders := api.Group("/orders")
	orders.Post("/", limit, handlers.CreateOrder)
	orders.Get("/:number", handlers.GetOrder)
	orders.Post("/:number/start", limit, handlers.StartDelivery)
	orders.Post("/:number/pause", limit, handlers.PauseDelivery)
	orders.Post("/:number/resume", limit, handlers.ResumeDelivery)
	orders.Post("/:number/complete", limit, handlers.CompleteDelivery)

	go func() {
		if err := app.Listen(cfg.RunAddress); err != nil {
			sugaredLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugaredLogger.Info("Shutting down service...")

	close(stop)
	if err := app.Shutdown(); err != nil {
		sugaredLogger.Errorf("server shutdown: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(ctx); err != nil {
		sugaredLogger.Errorf("dispatcher drain: %s", err)
	}
}
