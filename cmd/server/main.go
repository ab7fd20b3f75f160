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

	"github.com/jonboulle/clockwork"

	"github.com/chetanK28/planning-poker/internal/api"
	"github.com/chetanK28/planning-poker/internal/config"
	"github.com/chetanK28/planning-poker/internal/server"
	"github.com/chetanK28/planning-poker/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr            string
	signingKey      string
	allowedOrigins  stringSliceFlag
	roomIdleTimeout time.Duration
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&roomIdleTimeout, "room-idle-timeout", 30*time.Second, "how long an empty room is kept before it is unloaded")
	flag.Parse()

	logger := log.New(os.Stderr, "[planning-poker] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, signingKey, allowedOrigins, roomIdleTimeout)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	pokerServer, err := server.NewPokerServer(logger, statsUpdater, clockwork.NewRealClock(), cfg.RoomIdleTimeout)
	if err != nil {
		logger.Fatal("new poker server:", err)
	}

	srv := api.NewPokerApp(mux, logger, pokerServer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go pokerServer.Run()

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

	logger.Println("shutting down poker server...")
	if err := pokerServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("poker server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
