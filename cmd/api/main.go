package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/augustalabs/summit-outreach/internal/auth"
	"github.com/augustalabs/summit-outreach/internal/browser"
	"github.com/augustalabs/summit-outreach/internal/config"
	"github.com/augustalabs/summit-outreach/internal/database"
	"github.com/augustalabs/summit-outreach/internal/handler"
	"github.com/augustalabs/summit-outreach/internal/message"
	middlewarepkg "github.com/augustalabs/summit-outreach/internal/middleware"
	"github.com/augustalabs/summit-outreach/internal/pipeline"
	"github.com/augustalabs/summit-outreach/internal/repository"
	"github.com/augustalabs/summit-outreach/internal/service"
	"github.com/augustalabs/summit-outreach/internal/session"
	"github.com/augustalabs/summit-outreach/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	contact, err := service.ValidateContact(cfg.Contact)
	if err != nil {
		log.Fatalf("invalid contact config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	usersRepo := repository.NewPGXUsersRepository(pool)
	attendeesRepo := repository.NewPGXAttendeesRepository(pool)

	lister, executor, cleanup, err := buildExecutor(cfg)
	if err != nil {
		log.Fatalf("failed to set up executor: %v", err)
	}
	defer cleanup()

	var messages pipeline.MessageProvider
	if cfg.AnthropicAPIKey != "" {
		messages = message.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.ClaudeModel, contact)
	} else {
		log.Printf("no anthropic api key configured, using template messages")
		messages = message.NewTemplateProvider(contact)
	}

	collector := pipeline.NewCollector(lister, attendeesRepo, cfg.Pipeline)
	coordinator := pipeline.NewCoordinator(attendeesRepo, executor, messages, cfg.Pipeline)

	authService := service.NewAuthService(usersRepo, jwtManager)
	userService := service.NewUserService(usersRepo)
	runsService := service.NewRunsService(attendeesRepo, collector, coordinator, cfg.Pipeline)
	attendeesService := service.NewAttendeesService(attendeesRepo)

	authHandler := handler.NewAuthHandler(authService)
	userAdminHandler := handler.NewUserAdminHandler(userService)
	runsHandler := handler.NewRunsHandler(runsService)
	attendeesHandler := handler.NewAttendeesHandler(attendeesService)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.POST("/auth/login", authHandler.Login)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	secured.GET("/attendees", attendeesHandler.List)
	secured.GET("/attendees/stats", attendeesHandler.Stats)
	secured.GET("/attendees/:profile_id", attendeesHandler.Get)

	secured.GET("/runs/current", runsHandler.Status)
	secured.GET("/runs/report", runsHandler.Report)

	admin := secured.Group("", middlewarepkg.RequireRole("admin"))
	admin.POST("/runs", runsHandler.Start, middlewarepkg.RunsRateLimiter(cfg.RateLimitRuns))
	admin.POST("/runs/cancel", runsHandler.Cancel)
	admin.GET("/admin/users", userAdminHandler.List)
	admin.POST("/admin/users", userAdminHandler.Create)
	admin.PUT("/admin/users/:id", userAdminHandler.Update)
	admin.DELETE("/admin/users/:id", userAdminHandler.Delete)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	// Stop the active run, if any, and let it wind down before the browser
	// pool goes away.
	if err := runsService.Cancel(); err == nil {
		runsService.Wait()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// buildExecutor wires the configured executor backend: a local headless
// Chrome pool, or a remote worker service fronted by an ID token client.
func buildExecutor(cfg *config.Config) (pipeline.Lister, pipeline.Executor, func(), error) {
	switch cfg.Executor {
	case config.ExecutorWorker:
		client := worker.NewClient(nil, cfg.WorkerBaseURL)
		return client, client, func() {}, nil
	default:
		cookies, err := session.Load(cfg.CookiesFile)
		if err != nil {
			return nil, nil, nil, err
		}
		// One instance per lane plus one the listing walker keeps to itself.
		pool, err := browser.New(browser.Options{
			Instances: cfg.Pipeline.Lanes + 1,
			Headless:  cfg.Headless,
		}, cookies)
		if err != nil {
			return nil, nil, nil, err
		}
		lister, err := browser.NewLister(pool, cfg.Pipeline.DiscoveryURL)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return lister, browser.NewExecutor(pool), pool.Close, nil
	}
}
