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

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dentalclinic/m/internal/api"
	"dentalclinic/m/internal/config"
	"dentalclinic/m/internal/database"
	"dentalclinic/m/internal/logger"
	"dentalclinic/m/internal/metrics"
	"dentalclinic/m/internal/migrations"
	"dentalclinic/m/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consultorio",
		Short: "Dental practice API server",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and load the treatment catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			defer db.Close()
			log.Info("schema ready", zap.String("driver", db.DriverName()))
			return nil
		},
	}
}

// bootstrap loads configuration, opens the database and brings the schema
// and treatment catalogue up to date.
func bootstrap() (config.Config, *zap.Logger, *sqlx.DB, error) {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return cfg, nil, nil, err
	}
	if _, err := seed.LoadTreatmentCatalog(db, cfg.TreatmentCatalog, log); err != nil {
		db.Close()
		return cfg, nil, nil, err
	}
	return cfg, log, db, nil
}

func runServer() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer db.Close()

	handler := api.New(db, cfg, log, metrics.New())
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
