package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/bootstrap"
	"github.com/erp/dealbridge/internal/infrastructure/config"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
)

func main() {
	var (
		timeout  time.Duration
		logLevel string
	)
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall deadline for the login")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	}, "authcheck")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := bootstrap.NewERPClient(cfg.ERP, log)
	result, err := client.Authenticate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Auth failed: %v\n", err)
		logger.Sync(log)
		os.Exit(1)
	}

	session := result.SessionID
	if session == "" {
		session = "(cookie only)"
	}
	fmt.Printf("SessionId: %s\n", session)
	fmt.Printf("Cookies: %s\n", strings.Join(result.CookieNames, ", "))
}
