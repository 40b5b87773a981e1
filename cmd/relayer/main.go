package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"relayer-backend/internal/app"
	"relayer-backend/internal/config"
	"relayer-backend/internal/db"
	"relayer-backend/internal/handlers"
	"relayer-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db.InitDB()

	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	container.RescueMonitorService.Start()

	logger := logrus.New()
	swapHandler := handlers.NewSwapHandler(container.OrderService, logger)
	resolverHandler := handlers.NewResolverHandler(
		container.CommitmentService, container.EscrowService, container.SecretService, logger)
	adminHandler := handlers.NewAdminHandler(
		container.OrderRepo, container.PenaltyRepo, container.RescueMonitorService, logger)
	wsHandler := handlers.NewWebSocketHandler(container.WebSocketPushService)

	r := router.SetupRouter(swapHandler, resolverHandler, adminHandler, wsHandler)

	// Shut down background workers on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Printf("🛑 Received %s, shutting down...", sig)
		container.Shutdown()
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	log.Printf("🚀 Relayer listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
