package main

import (
	"context"
	"fmt"

	"giftletter/config"
	"giftletter/config/storage"
	"giftletter/internal/canvas/repository"
	"giftletter/internal/canvas/service"
	"giftletter/internal/upload"
	"giftletter/middleware"
	"giftletter/pkg/kv"
	"giftletter/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "giftctl",
	Short: "Inspect and repair gift letter canvases",
	Long: `giftctl works directly on the store configured for the backend
(KV_BACKEND and friends, read from the environment or a .env file).
Stop the server first when using the pebble backend.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if verbose {
			logger.Init("debug")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// env is what a command needs from the backend.
type env struct {
	store kv.Store
	svc   *service.GiftService
}

func (e *env) Close() {
	e.store.Close()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	uploads := upload.NewStore(store, upload.Options{BaseURL: cfg.PublicBaseURL, MaxBytes: cfg.MaxUpload})
	svc := service.NewGiftService(repository.NewSnapshotRepository(store), uploads, nil, service.Options{
		SaveDelay:     cfg.SaveDebounce,
		PublicBaseURL: cfg.PublicBaseURL,
		IssueToken:    middleware.TokenIssuer([]byte(cfg.JWTSecret)),
	})
	return &env{store: store, svc: svc}, nil
}
