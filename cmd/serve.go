package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"worker-proxy-server/handlers"
	"worker-proxy-server/middleware"
	"worker-proxy-server/services"

	_ "worker-proxy-server/docs"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Tracing.Enabled {
				if err := xray.Configure(xray.Config{DaemonAddr: cfg.Tracing.DaemonAddr, ServiceVersion: "1.0"}); err != nil {
					return err
				}
			}

			a, err := wireApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.config
	log := a.logger

	server := newFiberApp(a)

	// Stopped in reverse: async consumers, then warm pings, then pending writes
	defer a.proxy.Wait()
	if a.warm != nil {
		a.warm.Start()
		defer a.warm.Stop()
	}
	if a.redis != nil {
		runner := services.NewAsyncRunner(a.proxy, a.redis, cfg.Async.Consumers, cfg.Tracing.Enabled, log)
		runner.Start()
		defer runner.Stop()
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("worker", cfg.Worker.Binary).
			Int("max_concurrent", cfg.Gate.MaxConcurrent).
			Int("max_queue", cfg.Gate.MaxQueue).
			Msg("worker proxy starting")
		listenErr <- server.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newFiberApp(a *app) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName: "Worker Proxy",
		// Executions may legitimately run for the whole max run timeout
		ReadTimeout:  time.Minute,
		WriteTimeout: a.config.Worker.MaxRunTimeout + a.config.Gate.QueueTimeout + time.Minute,
	})

	// Middleware
	server.Use(fiberlogger.New())
	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	if a.config.Tracing.Enabled {
		server.Use(middleware.XRayMiddleware(a.logger))
	}

	// Swagger
	server.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoints
	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(server.Group("/api"), a.proxy)
	return server
}
