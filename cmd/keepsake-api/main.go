package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marigoldlabs/keepsake/backend/internal/accounts"
	"github.com/marigoldlabs/keepsake/backend/internal/auth"
	"github.com/marigoldlabs/keepsake/backend/internal/books"
	"github.com/marigoldlabs/keepsake/backend/internal/config"
	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/database"
	"github.com/marigoldlabs/keepsake/backend/internal/ids"
	"github.com/marigoldlabs/keepsake/backend/internal/logging"
	"github.com/marigoldlabs/keepsake/backend/internal/publicid"
	"github.com/marigoldlabs/keepsake/backend/internal/server"
	"github.com/marigoldlabs/keepsake/backend/internal/storage"
	localstorage "github.com/marigoldlabs/keepsake/backend/internal/storage/local"
	s3storage "github.com/marigoldlabs/keepsake/backend/internal/storage/s3"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "keepsake-api",
		Short: "Keepsake memory book backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "JWT signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("frontend-origin", defaults.GetString("frontend.origin"), "Allowed CORS origin")
	cmd.PersistentFlags().String("upload-dir", defaults.GetString("upload.dir"), "Directory for the local storage backend")
	cmd.PersistentFlags().Int64("max-upload-bytes", defaults.GetInt64("upload.max_bytes"), "Per-file upload size ceiling")
	cmd.PersistentFlags().String("storage-backend", defaults.GetString("storage.backend"), "Object storage backend (local or s3)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "frontend.origin", "frontend-origin")
	bindFlag(cmd, "upload.dir", "upload-dir")
	bindFlag(cmd, "upload.max_bytes", "max-upload-bytes")
	bindFlag(cmd, "storage.backend", "storage-backend")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	objectStore, err := buildObjectStore(ctx, appConfig)
	if err != nil {
		return err
	}

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "keepsake-auth",
		Audience:      "keepsake-api",
		TokenTTL:      time.Duration(appConfig.TokenTTLMinutes) * time.Minute,
	})

	idProvider := ids.NewUUIDProvider()

	accountsService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Tokens:     tokenIssuer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	booksService, err := books.NewService(books.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		PublicIDs:  publicid.NewGenerator(),
		Objects:    objectStore,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	contributionsService, err := contributions.NewService(contributions.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Books:      booksService,
		Objects:    objectStore,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:       accountsService,
		Books:          booksService,
		Contributions:  contributionsService,
		Objects:        objectStore,
		FrontendOrigin: appConfig.FrontendOrigin,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("storage_backend", string(appConfig.Storage)))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildObjectStore(ctx context.Context, appConfig config.AppConfig) (storage.Store, error) {
	switch appConfig.Storage {
	case config.StorageBackendLocal:
		return localstorage.NewStore(localstorage.Config{
			BaseDir:  appConfig.UploadDir,
			MaxBytes: appConfig.MaxUploadBytes,
		})
	case config.StorageBackendS3:
		return s3storage.NewStore(ctx, s3storage.Config{
			Region:          appConfig.S3.Region,
			Bucket:          appConfig.S3.Bucket,
			Endpoint:        appConfig.S3.Endpoint,
			AccessKeyID:     appConfig.S3.AccessKeyID,
			SecretAccessKey: appConfig.S3.SecretAccessKey,
			UsePathStyle:    appConfig.S3.UsePathStyle,
			PublicBaseURL:   appConfig.S3.PublicBaseURL,
			MaxBytes:        appConfig.MaxUploadBytes,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", appConfig.Storage)
	}
}
