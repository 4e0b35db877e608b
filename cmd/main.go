package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"erp-connector-service/internal/config"
	"erp-connector-service/internal/credentials"
	"erp-connector-service/internal/database"
	"erp-connector-service/internal/events"
	"erp-connector-service/internal/gateway"
	"erp-connector-service/internal/handlers"
	"erp-connector-service/internal/idempotency"
	"erp-connector-service/internal/middleware"
	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
	"erp-connector-service/internal/providers/dynamics"
	"erp-connector-service/internal/providers/oracle"
	"erp-connector-service/internal/repository"
	"erp-connector-service/internal/secrets"
	"erp-connector-service/internal/transport"
)

func main() {
	// .env is optional, real deployments use injected environment
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Warn("Auto-migration failed")
	}
	logrus.Info("Database models migrated")

	// Initialize GCP Secret Manager
	var secretManager *secrets.GCPSecretManager
	if cfg.GCPProjectID != "" {
		ctx := context.Background()
		secretManager, err = secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
		if err != nil {
			logrus.WithError(err).Warn("Failed to initialize GCP Secret Manager")
		} else {
			logrus.Info("GCP Secret Manager initialized")
			defer secretManager.Close()
		}
	}

	// Initialize repositories
	connectionRepo := repository.NewConnectionRepository(db)
	eventRepo := repository.NewEventRepository(db)
	mappingRepo := repository.NewMappingRepository(db)

	recorder := events.NewLogger(eventRepo)

	idemService := idempotency.NewService(idempotency.NewGormStore(db), cfg.IdempotencyTTL)
	httpClient := transport.NewClient(cfg.HTTPTimeout)

	// Build one gateway per enabled provider
	registry := gateway.NewRegistry()
	if cfg.Dynamics.Enabled {
		registerProvider(registry, models.ProviderDynamics, cfg, secretManager, httpClient, recorder, idemService, mappingRepo, connectionRepo)
	}
	if cfg.Oracle.Enabled {
		registerProvider(registry, models.ProviderOracle, cfg, secretManager, httpClient, recorder, idemService, mappingRepo, connectionRepo)
	}

	// Drop expired idempotency records periodically
	go purgeLoop(idemService)

	router := setupRouter(cfg, db, registry, eventRepo, connectionRepo)

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"environment": cfg.Environment,
		"providers":   registry.Providers(),
	}).Info("ERP Connector Service starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

// registerProvider builds the credential store, adapter and gateway for
// one provider and registers it. Bad configuration skips the provider
// instead of killing the process.
func registerProvider(
	registry *gateway.Registry,
	provider models.ProviderType,
	cfg *config.Config,
	secretManager *secrets.GCPSecretManager,
	httpClient *transport.Client,
	recorder events.Recorder,
	idemService *idempotency.Service,
	mappingRepo *repository.MappingRepository,
	connectionRepo *repository.ConnectionRepository,
) {
	providerCfg := resolveProviderConfig(provider, cfg, secretManager)

	store, err := credentials.NewStore(provider, providerCfg)
	if err != nil {
		logrus.WithError(err).WithField("provider", provider).Error("Provider configuration rejected, skipping")
		return
	}
	store.SetSafetyMargin(cfg.TokenSafetyMargin)

	var adapter providers.Adapter
	switch provider {
	case models.ProviderDynamics:
		a := dynamics.NewAdapter(store, httpClient, recorder)
		a.SetKeyCache(mappingRepo)
		adapter = a
	case models.ProviderOracle:
		a := oracle.NewAdapter(store, httpClient, recorder)
		a.SetKeyCache(mappingRepo)
		adapter = a
	default:
		logrus.WithField("provider", provider).Error("No adapter for provider")
		return
	}

	gw := gateway.NewGateway(adapter, store, idemService, recorder)
	gw.SetMappingRepository(mappingRepo)
	gw.SetConnectionRepository(connectionRepo)
	registry.Register(gw)

	ensureConnectionProfile(connectionRepo, provider, providerCfg)
	logrus.WithField("provider", provider).Info("Provider gateway registered")
}

// resolveProviderConfig reads the provider settings from the environment
// and overlays Secret Manager credentials when available
func resolveProviderConfig(provider models.ProviderType, cfg *config.Config, secretManager *secrets.GCPSecretManager) credentials.ProviderConfig {
	var env config.ProviderEnv
	switch provider {
	case models.ProviderDynamics:
		env = cfg.Dynamics
	case models.ProviderOracle:
		env = cfg.Oracle
	}

	providerCfg := credentials.ProviderConfig{
		Endpoint:     env.Endpoint,
		TenantID:     env.TenantID,
		InstanceID:   env.InstanceID,
		ClientID:     env.ClientID,
		ClientSecret: env.ClientSecret,
		Resource:     env.Resource,
	}

	if secretManager == nil {
		return providerCfg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	secret, err := secretManager.GetSecret(ctx, secretManager.BuildSecretName(string(provider)))
	if err != nil {
		logrus.WithError(err).WithField("provider", provider).Debug("No stored secret, using environment credentials")
		return providerCfg
	}

	switch provider {
	case models.ProviderDynamics:
		if creds, err := secretManager.GetDynamicsCredentials(secret); err == nil {
			overlay(&providerCfg.Endpoint, creds.Endpoint)
			overlay(&providerCfg.TenantID, creds.TenantID)
			overlay(&providerCfg.ClientID, creds.ClientID)
			overlay(&providerCfg.ClientSecret, creds.ClientSecret)
			overlay(&providerCfg.Resource, creds.Resource)
		}
	case models.ProviderOracle:
		if creds, err := secretManager.GetOracleCredentials(secret); err == nil {
			overlay(&providerCfg.Endpoint, creds.Endpoint)
			overlay(&providerCfg.InstanceID, creds.InstanceID)
			overlay(&providerCfg.ClientID, creds.ClientID)
			overlay(&providerCfg.ClientSecret, creds.ClientSecret)
			overlay(&providerCfg.Resource, creds.Scope)
		}
	}
	return providerCfg
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// ensureConnectionProfile creates the stored profile row for a provider
// on first startup
func ensureConnectionProfile(repo *repository.ConnectionRepository, provider models.ProviderType, cfg credentials.ProviderConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	existing, err := repo.GetByProvider(ctx, provider)
	if err != nil {
		logrus.WithError(err).WithField("provider", provider).Warn("Failed to look up connection profile")
		return
	}
	if existing != nil {
		return
	}

	err = repo.Create(ctx, &models.ERPConnection{
		ProviderType: provider,
		DisplayName:  string(provider),
		Status:       models.ConnectionPending,
		IsEnabled:    true,
		Endpoint:     cfg.Endpoint,
		TenantID:     cfg.TenantID,
		InstanceID:   cfg.InstanceID,
	})
	if err != nil {
		logrus.WithError(err).WithField("provider", provider).Warn("Failed to create connection profile")
	}
}

// purgeLoop drops expired idempotency records once an hour
func purgeLoop(idemService *idempotency.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if purged, err := idemService.Purge(ctx); err != nil {
			logrus.WithError(err).Warn("Idempotency purge failed")
		} else if purged > 0 {
			logrus.WithField("purged", purged).Debug("Dropped expired idempotency records")
		}
		cancel()
	}
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	db *gorm.DB,
	registry *gateway.Registry,
	eventRepo *repository.EventRepository,
	connectionRepo *repository.ConnectionRepository,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))

	healthHandler := handlers.NewHealthHandler(db)
	gatewayHandler := handlers.NewGatewayHandler(registry)
	eventHandler := handlers.NewEventHandler(eventRepo)
	connectionHandler := handlers.NewConnectionHandler(connectionRepo)

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1/erp")
	{
		v1.GET("/providers", gatewayHandler.ListProviders)
		v1.GET("/events", eventHandler.List)

		connections := v1.Group("/connections")
		{
			connections.GET("", connectionHandler.List)
			connections.GET("/:id", connectionHandler.Get)
			connections.PATCH("/:id", connectionHandler.Update)
		}

		provider := v1.Group("/:provider")
		{
			provider.POST("/sync", gatewayHandler.Sync)
			provider.POST("/test", gatewayHandler.TestConnection)
			provider.GET("/status", gatewayHandler.Status)
			provider.GET("/inventory", gatewayHandler.GetInventory)
			provider.POST("/inventory", gatewayHandler.UpdateInventory)
			provider.POST("/purchase-orders", gatewayHandler.CreatePurchaseOrder)
		}
	}

	return router
}
