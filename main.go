package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"giftletter/config"
	"giftletter/config/storage"
	"giftletter/internal/canvas/repository"
	"giftletter/internal/canvas/service"
	"giftletter/internal/upload"
	"giftletter/middleware"
	"giftletter/pkg/logger"
	"giftletter/router"
	"giftletter/socket"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if envErr != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	store, err := storage.Open(context.Background(), cfg)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open %s store: %v", cfg.KVBackend, err)
	}
	defer store.Close()

	uploads := upload.NewStore(store, upload.Options{
		BaseURL:  cfg.PublicBaseURL,
		MaxBytes: cfg.MaxUpload,
		RPS:      cfg.UploadRPS,
		Burst:    cfg.UploadBurst,
	})

	secret := []byte(cfg.JWTSecret)
	hub := socket.NewHub(nil)
	svc := service.NewGiftService(repository.NewSnapshotRepository(store), uploads, hub, service.Options{
		SaveDelay:     cfg.SaveDebounce,
		IdleTTL:       cfg.SessionIdle,
		PublicBaseURL: cfg.PublicBaseURL,
		IssueToken:    middleware.TokenIssuer(secret),
	})
	hub.Canvas = svc

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	go svc.Janitor(ctx, cfg.JanitorEvery)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(svc, uploads, hub, secret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Sugar.Infof("Gift letter backend listening on :%s (%s store)", cfg.Port, cfg.KVBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down, flushing unsaved canvases")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("HTTP shutdown: %v", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Some canvases were not saved: %v", err)
	}
}
