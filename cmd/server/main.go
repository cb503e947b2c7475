package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oessenger/oessenger/internal/api"
	"github.com/oessenger/oessenger/internal/chat"
	"github.com/oessenger/oessenger/internal/config"
	"github.com/oessenger/oessenger/internal/database"
	"github.com/oessenger/oessenger/internal/events"
	"github.com/oessenger/oessenger/internal/stats"
)

const defaultSigningKey = "dGhpcy1pcy1ub3QtYS1wcm9kdWN0aW9uLXNlY3JldC1rZXk="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	skipMigrations bool
)

// envDefault returns the value of the environment variable key, or
// fallback when unset. Flags still take precedence over both.
func envDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func main() {
	// optional .env file for local development
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envDefault("OESSENGER_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envDefault("OESSENGER_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envDefault("OESSENGER_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.BoolVar(&skipMigrations, "skip-migrations", false, "do not run database migrations on startup")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if origins := os.Getenv("OESSENGER_ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = strings.Split(origins, ",")
		}
	}

	logger := log.New(os.Stderr, "[oessenger] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if !skipMigrations {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("migrate:", err)
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := events.NewHub(logger, statsUpdater)

	svc := chat.NewService(logger, dbConn, hub, statsUpdater)

	srv := api.NewApp(mux, logger, svc, hub, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down event hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("event hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
