package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datakit/core/loader"
	"datakit/core/logger"
	"datakit/core/middleware/auth"
	"datakit/core/middleware/rayid"
	"datakit/feature/integrity"
	"datakit/feature/stories"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "datakit/docs/swagger"
)

// @title Datakit API
// @version 1.0
// @description API for the Hacker News story mirror.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the datakit server",
	Long: `Starts the HTTP server and initializes all enabled features.
When sync.interval_seconds is set the mirror is refreshed in the background.`,
	RunE: runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	logg := a.logger
	zap.ReplaceGlobals(logg)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// RayID first so every later log line carries it.
	app.Use(rayid.New())
	app.Use(requestLogger(logg))

	// Swagger is registered before auth and stays public.
	app.Get("/swagger/*", swagger.HandlerDefault)

	if a.cfg.Server.AuthEnabled() {
		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))
	} else {
		logg.Warn("API key is not set, requests are not authenticated")
	}

	mgr := loader.NewManager(logg)
	mgr.Register(stories.NewFeature(a.service))
	mgr.Register(integrity.NewFeature(a.integrity()))
	if err := mgr.LoadAll(app); err != nil {
		return fmt.Errorf("failed to load features: %w", err)
	}

	if interval := a.cfg.Sync.Interval(); interval > 0 {
		go a.service.Run(ctx, interval)
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("address", a.cfg.Server.Address()))
		errCh <- app.Listen(a.cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logg.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logg.Warn("Server shutdown failed", zap.Error(err))
	}
	if err := a.container.SaveAll(context.Background()); err != nil {
		logg.Warn("Failed to save pending changes", zap.Error(err))
	}
	return nil
}

// requestLogger logs each request with its ray id.
func requestLogger(logg *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		l := logger.WithRayID(logg, c)

		err := c.Next()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			l.Error("Request error", append(fields, zap.Error(err))...)
			return err
		}
		l.Info("Request handled", fields...)
		return nil
	}
}
