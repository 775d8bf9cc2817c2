package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/wfunc/gardien/archive"
	"github.com/wfunc/gardien/auth"
	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/config"
	"github.com/wfunc/gardien/gemini"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/monitor"
	"github.com/wfunc/gardien/oracle"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/server"
	"github.com/wfunc/gardien/services"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Database %q ready.", cfg.Database.Driver)

	if cfg.AI.APIKey == "" {
		logger.Log.Warn("GEMINI_API_KEY is not set, photos will wait for manual review")
	}
	model := gemini.NewClient(gemini.Config{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		APIKey:  cfg.AI.APIKey,
		Timeout: cfg.AI.Timeout,
	})

	var proofs archive.Archive = archive.Nop{}
	if cfg.Archive.Bucket != "" {
		s3, err := archive.NewS3(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			Prefix:    cfg.Archive.Prefix,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			logger.Log.Fatalf("Failed to open proof archive: %v", err)
		}
		proofs = s3
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.New().String()
		logger.Log.Warn("GARDIEN_AUTH_SECRET is not set, API tokens will not survive a restart")
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Log.Fatalf("Failed to create token issuer: %v", err)
	}

	mon := monitor.NewMonitor(cfg.Metrics.Namespace)

	game, err := services.NewGameService(ctx, services.Config{
		DB:           db,
		Classifier:   classifier.NewGemini(model),
		Archive:      proofs,
		Recorder:     mon,
		MaxAdmins:    cfg.Game.MaxAdmins,
		NearbyRadius: cfg.Game.NearbyRadius,
	})
	if err != nil {
		logger.Log.Fatalf("Failed to load game state: %v", err)
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(server.Options{
		HTTPAddr:          cfg.Server.HTTPAddress,
		RPCAddr:           cfg.Server.RPCAddress,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		IdleTimeout:       cfg.Server.IdleTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}, game, oracle.NewGemini(model), issuer, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(ctx); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
	logger.Log.Info("Server stopped.")
}
