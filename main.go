package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"droppers-api/config"
	"droppers-api/distance"
	"droppers-api/handlers"
	"droppers-api/logx"
	"droppers-api/middleware"
	"droppers-api/realtime"
	"droppers-api/repository"
	"droppers-api/routes"
	"droppers-api/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "droppers-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logger := logx.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting", logx.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := config.CloseDB(db); err != nil {
			logger.Warn("close database", logx.Err(err))
		}
	}()

	users := repository.NewUserRepository(db)
	orders := repository.NewOrderRepository(db)

	authSvc := service.NewAuthService(users, cfg.Auth, cfg.Rules, logger)
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if !created {
			logger.Info("admin account already present", logx.String("email", cfg.Admin.Email))
		}
	}

	est, err := distance.NewRandom(cfg.Distance.MinKm, cfg.Distance.MaxKm, uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}

	hub := realtime.NewHub(logger)
	orderSvc := service.NewOrderService(orders, est, realtime.NewNotifier(hub), cfg.Rules, logger)

	var relay *realtime.AMQPRelay
	if cfg.AMQP.URL != "" {
		relay, err = realtime.DialRelay(cfg.AMQP.URL, cfg.AMQP.Exchange, hub, logger)
		if err != nil {
			return err
		}
		defer relay.Close()
		hub.SetRelay(relay)
		logger.Info("realtime relay enabled", logx.String("exchange", cfg.AMQP.Exchange))
	}

	ws := realtime.NewServer(hub, authSvc, orderSvc, cfg.Realtime.SendBuffer, cfg.Realtime.AllowedOrigins, logger)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Observability(logger), middleware.CORS(cfg.Realtime.AllowedOrigins))

	h := handlers.New(authSvc, orderSvc, logger,
		handlers.WithProduction(cfg.IsProduction()),
		handlers.WithPinger(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	)
	routes.SetupRoutes(r, routes.Deps{Handler: h, Tokens: authSvc, Realtime: ws.Handle})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", logx.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
