/**
 * @description
 * This is the main entry point for the rewards-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * the event producer, the repository, the core application service, the maintenance
 * scheduler and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq, pkg/session: Event publishing and session tokens.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/loyalty/rewards-service/internal/api"
	"github.com/loyalty/rewards-service/internal/app"
	"github.com/loyalty/rewards-service/internal/config"
	"github.com/loyalty/rewards-service/internal/store"
	"github.com/loyalty/rewards-service/pkg/rabbitmq"
	"github.com/loyalty/rewards-service/pkg/session"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting rewards-service\" port=%s", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MinConns = cfg.DatabaseMinConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching so the service works behind pgbouncer
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		log.Fatalf("level=fatal component=bootstrap msg=\"schema migration failed\" err=%v", err)
	}
	cancelMigrate()

	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	sessions, err := session.NewManager(cfg.SessionSecret, cfg.SessionTTL())
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"session manager init failed\" err=%v", err)
	}

	rewardService := app.NewService(repository, producer, app.Settings{
		EventsExchange:     cfg.EventsExchange,
		PublicBaseURL:      cfg.PublicBaseURL,
		MaxCodesPerRequest: cfg.MaxCodesPerRequest,
	})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := app.NewDownloadLinkSweeper(repository, cfg.DownloadLinkTTL(), logger)
	scheduler := app.NewScheduler(sweeper, cfg.DownloadLinkSweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"scheduler start failed\" err=%v", err)
	}

	router := api.NewRouter(api.NewRewardHandlers(rewardService), api.RouterOptions{
		Verifier:       sessions,
		CookieName:     cfg.SessionCookieName,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	<-scheduler.Stop().Done()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
