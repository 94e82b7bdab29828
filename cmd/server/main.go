package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/clients"
	"bridge-relay/internal/config"
	"bridge-relay/internal/db"
	"bridge-relay/internal/events"
	"bridge-relay/internal/repository"
	"bridge-relay/internal/router"
	"bridge-relay/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db.InitDB()

	requestRepo := repository.NewBridgeRequestRepository(db.DB)
	timelockRepo := repository.NewTimelockRepository(db.DB)
	stateRepo := repository.NewStateRepository(db.DB)

	custody, err := buildCustody(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize custody adapter")
	}

	natsCfg := config.AppConfig.NATS
	publisher, err := events.NewPublisher(natsCfg.URL, natsCfg.SubjectPrefix, time.Duration(natsCfg.Timeout)*time.Second, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to NATS")
	}

	hub := services.NewEventHub(logger)

	service, err := services.NewRelayService(custody, requestRepo, timelockRepo, stateRepo, publisher, hub, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build relay service")
	}
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := service.Restore(ctx); err != nil {
		cancel()
		logger.WithError(err).Fatal("Failed to restore engine state")
	}
	cancel()

	r := router.SetupRouter(service, hub, logger)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("Relay server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
}

func buildCustody(logger *logrus.Logger) (bridge.CustodyAdapter, error) {
	chainCfg := config.AppConfig.Chain
	switch chainCfg.Driver {
	case "memory":
		logger.Warn("Using in-memory custody ledger; funds are not backed by a chain")
		return clients.NewMemoryCustody(), nil
	case "erc20", "":
		return clients.NewERC20Custody(
			chainCfg.RPCEndpoint,
			chainCfg.OperatorKey,
			chainCfg.ChainID,
			chainCfg.GasLimit,
			time.Duration(chainCfg.ConfirmTimeout)*time.Second,
			logger,
		)
	default:
		return nil, fmt.Errorf("unknown chain driver %q", chainCfg.Driver)
	}
}
