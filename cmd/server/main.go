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

	"github.com/kusum-bhattarai/dev-journal/internal/api"
	"github.com/kusum-bhattarai/dev-journal/internal/config"
	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/journalapi"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/userapi"
	"github.com/kusum-bhattarai/dev-journal/internal/server"
	"github.com/kusum-bhattarai/dev-journal/internal/stats"
	_ "github.com/lib/pq"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr              string
	dsn               string
	signingKey        string
	internalAPIKey    string
	userServiceURL    string
	journalServiceURL string
	allowedOrigins    stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("JWT_SECRET"), "base64 encoded signing key")
	flag.StringVar(&internalAPIKey, "internal-api-key", os.Getenv("INTERNAL_API_KEY"), "shared key for service-to-service calls")
	flag.StringVar(&userServiceURL, "user-service-url", "http://localhost:8001", "base URL of the user service")
	flag.StringVar(&journalServiceURL, "journal-service-url", "http://localhost:8002", "base URL of the journal service")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[dev-journal] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, internalAPIKey, userServiceURL, journalServiceURL, allowedOrigins)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close: ", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	users := userapi.NewClient(cfg.UserServiceURL)
	journal := journalapi.NewClient(cfg.JournalServiceURL)

	chatServer, err := server.NewChatServer(logger, dbConn, journal, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server: ", err)
	}

	srv := api.NewChatApp(logger, chatServer, dbConn, users, cfg, mux)

	go chatServer.Run()

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

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
