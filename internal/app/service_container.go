package app

import (
	"fmt"
	"log"
	"sync"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/clients"
	"relayer-backend/internal/config"
	"relayer-backend/internal/db"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/services"

	"gorm.io/gorm"
)

// ServiceContainer wires repositories and services once and hands them to
// the router and background workers
type ServiceContainer struct {
	// Database
	DB *gorm.DB

	// Repositories
	OrderRepo      repository.OrderRepository
	CommitmentRepo repository.CommitmentRepository
	EscrowRepo     repository.EscrowRepository
	SecretRepo     repository.SecretRepository
	PenaltyRepo    repository.PenaltyRepository

	// Chain access
	ChainRegistry *chain.Registry

	// Broker
	NATSClient *clients.NATSClient

	// Core Services
	SecretVault       *services.SecretVault
	BroadcastService  *services.BroadcastService
	OrderService      *services.OrderService
	CommitmentService *services.CommitmentService
	EscrowService     *services.EscrowService
	SecretService     *services.SecretService

	// Push & Background Services
	WebSocketPushService *services.WebSocketPushService
	RescueMonitorService *services.RescueMonitorService
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		container := &ServiceContainer{
			DB: db.DB,
		}

		container.initRepositories()

		if err := container.initCoreServices(); err != nil {
			initErr = fmt.Errorf("failed to initialize core services: %w", err)
			return
		}

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.OrderRepo = repository.NewOrderRepository(c.DB)
	c.CommitmentRepo = repository.NewCommitmentRepository(c.DB)
	c.EscrowRepo = repository.NewEscrowRepository(c.DB)
	c.SecretRepo = repository.NewSecretRepository(c.DB)
	c.PenaltyRepo = repository.NewPenaltyRepository(c.DB)
}

func (c *ServiceContainer) initCoreServices() error {
	log.Println("⚙️ Initializing Core Services...")

	vault, err := services.NewSecretVault(config.AppConfig.Vault.SealKey)
	if err != nil {
		return fmt.Errorf("secret vault: %w", err)
	}
	c.SecretVault = vault

	c.ChainRegistry = chain.NewRegistry()

	natsClient, err := clients.NewNATSClient(&config.AppConfig.NATS)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	c.NATSClient = natsClient

	c.BroadcastService = services.NewBroadcastService(natsClient)
	c.WebSocketPushService = services.NewWebSocketPushService()

	c.OrderService = services.NewOrderService(
		c.OrderRepo, c.CommitmentRepo, c.EscrowRepo, c.SecretRepo,
		c.SecretVault, c.BroadcastService, c.ChainRegistry)

	c.CommitmentService = services.NewCommitmentService(c.OrderRepo, c.CommitmentRepo, c.PenaltyRepo)
	c.CommitmentService.AttachPush(c.WebSocketPushService)

	c.EscrowService = services.NewEscrowService(c.OrderRepo, c.CommitmentRepo, c.EscrowRepo, c.ChainRegistry)
	c.EscrowService.AttachPush(c.WebSocketPushService)

	c.SecretService = services.NewSecretService(
		c.OrderRepo, c.CommitmentRepo, c.EscrowRepo, c.SecretRepo, c.PenaltyRepo,
		c.SecretVault, c.ChainRegistry)
	c.SecretService.AttachPush(c.WebSocketPushService)
	c.EscrowService.AttachRevealer(c.SecretService)

	c.RescueMonitorService = services.NewRescueMonitorService(
		c.OrderRepo, c.CommitmentRepo, c.PenaltyRepo, c.BroadcastService)
	c.RescueMonitorService.AttachPush(c.WebSocketPushService)

	return nil
}

// Shutdown stops background workers and closes external connections
func (c *ServiceContainer) Shutdown() {
	log.Println("🛑 Shutting down Service Container...")

	if c.RescueMonitorService != nil {
		c.RescueMonitorService.Stop()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
}
