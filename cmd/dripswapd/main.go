package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dripswap/config"
	"dripswap/core/events"
	"dripswap/core/state"
	"dripswap/core/types"
	"dripswap/gateway"
	"dripswap/native/dca"
	"dripswap/observability/logging"
	"dripswap/rpc"
	"dripswap/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DRIPSWAP_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup(logging.Options{
		Service:  "dripswapd",
		Env:      env,
		FilePath: cfg.LogFilePath,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)

	engine := dca.NewEngine()
	engine.SetState(manager)
	engine.SetPeriodQuantum(cfg.PeriodSeconds)
	engine.SetEmitter(events.NewLogEmitter(logger))
	engine.SetOracle(dca.NewFixedRateOracle())

	var venue [20]byte
	if strings.TrimSpace(cfg.VenueAddress) != "" {
		if venue, err = types.ParseAddress(cfg.VenueAddress); err != nil {
			logger.Error("invalid venue address", slog.Any("error", err))
			os.Exit(1)
		}
	}
	engine.SetSwapper(dca.NewLedgerSwapper(manager, venue))

	params, err := cfg.EngineParams()
	if err != nil {
		logger.Error("invalid engine parameters", slog.Any("error", err))
		os.Exit(1)
	}
	if err := engine.EnsureParams(params); err != nil {
		logger.Error("failed to seed engine parameters", slog.Any("error", err))
		os.Exit(1)
	}

	errCh := make(chan error, 3)

	rpcServer := rpc.NewServer(engine, logger)
	go func() {
		errCh <- rpcServer.Start(cfg.RPCAddress)
	}()

	gatewayServer := gateway.NewServer(engine, logger)
	go func() {
		errCh <- gatewayServer.Start(cfg.GatewayAddress)
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("starting metrics endpoint", "addr", cfg.MetricsAddress)
		server := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh <- server.ListenAndServe()
	}()

	logger.Info("dripswapd started",
		"rpc", cfg.RPCAddress,
		"gateway", cfg.GatewayAddress,
		"periodSeconds", cfg.PeriodSeconds)

	if err := <-errCh; err != nil {
		logger.Error("server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
