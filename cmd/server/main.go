package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/sim-exchange/internal/app"
	"github.com/linemk/sim-exchange/internal/app/handlers"
	"github.com/linemk/sim-exchange/internal/config"
	"github.com/linemk/sim-exchange/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sim-exchange/internal/lib/logger"
	"github.com/linemk/sim-exchange/internal/lib/logger/handlers/urllog"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/lib/ratelimit"
	"github.com/linemk/sim-exchange/internal/metrics"
	"github.com/linemk/sim-exchange/internal/scheduler"
	"github.com/linemk/sim-exchange/internal/service"
	"github.com/linemk/sim-exchange/internal/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	initialCash, err := money.Parse(cfg.Ledger.InitialCash)
	if err != nil || initialCash.IsNegative() {
		log.Error("invalid initial cash", slog.String("value", cfg.Ledger.InitialCash), slog.Any("error", err))
		panic(errors.Errorf("invalid ledger.initial_cash %q", cfg.Ledger.InitialCash))
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	// загружаем объект приложения: конфиг, БД, источник цен
	application, err := app.NewApp(initCtx, log, cfg)
	initCancel()
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	portfolioRepo := storage.NewPortfolioRepository(application.DB)
	txRepo := storage.NewTransactionRepository(application.DB)
	pumpRepo := storage.NewPumpRepository(application.DB)

	authService := service.NewAuthService(
		application.Logger,
		application.DB,
		userRepo,
		portfolioRepo,
		time.Duration(cfg.JWT.TokenTTL)*time.Minute,
		initialCash,
	)

	// администратор заводится только с паролем из окружения
	if cfg.Auth.AdminUsername != "" {
		if cfg.Auth.AdminPassword == "" {
			log.Warn("ADMIN_PASSWORD is not set, admin account is not provisioned", slog.String("username", cfg.Auth.AdminUsername))
		} else {
			adminCtx, adminCancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := authService.EnsureAdmin(adminCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
			adminCancel()
			if err != nil {
				log.Error("failed to provision admin", slog.Any("error", err))
				panic(errors.Wrap(err, "failed to provision admin"))
			}
		}
	}
	ledgerService := service.NewLedgerService(
		application.Logger,
		application.DB,
		portfolioRepo,
		txRepo,
		pumpRepo,
		userRepo,
		application.Prices,
	)

	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	stopCleanup := make(chan struct{})
	go limiter.Cleanup(time.Minute, stopCleanup)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(metrics.Middleware)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware(log))

		// эндпоинт для аутентификации
		api.Post("/auth", handlers.AuthHandler(application.Logger, authService))

		api.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.NewJWTMiddleware())

			r.Get("/portfolio", handlers.PortfolioHandler(application.Logger, ledgerService))
			r.Get("/transactions", handlers.TransactionsHandler(application.Logger, ledgerService))
			r.Post("/trade", handlers.TradeHandler(application.Logger, ledgerService))
			r.Post("/withdraw", handlers.WithdrawHandler(application.Logger, ledgerService))

			// администрирование: требуется флаг isAdmin в токене
			r.Route("/admin", func(admin chi.Router) {
				admin.Use(jwtmiddleware.RequireAdmin)

				admin.Post("/grant", handlers.GrantHandler(application.Logger, ledgerService))
				admin.Post("/pumps", handlers.CreatePumpHandler(application.Logger, ledgerService))
				admin.Post("/pumps/process", handlers.ProcessPumpsHandler(application.Logger, ledgerService))
				admin.Get("/pumps/{userID}", handlers.ListPumpsHandler(application.Logger, ledgerService))
				admin.Delete("/pumps/{userID}", handlers.CancelPumpHandler(application.Logger, ledgerService))
				admin.Delete("/users/{userID}", handlers.DeleteUserHandler(application.Logger, ledgerService))
			})
		})
	})

	// фоновая обработка пампов включается только при заданном расписании
	var pumpTask *scheduler.ScheduledTask
	if cfg.Pumps.Schedule != "" {
		pumpTask, err = scheduler.NewPumpTask(log, cfg.Pumps.Schedule, ledgerService, cfg.Pumps.Timeout)
		if err != nil {
			log.Error("failed to schedule pump processing", slog.Any("error", err))
			panic(errors.Wrap(err, "failed to schedule pump processing"))
		}
		log.Info("pump processing scheduled", slog.String("schedule", cfg.Pumps.Schedule))
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	if pumpTask != nil {
		pumpTask.Cancel()
	}
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
