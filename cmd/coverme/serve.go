package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/db"
	"github.com/jonathan/coverme/internal/fetch"
	"github.com/jonathan/coverme/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the detection HTTP server",
	Long: `Start an HTTP server that answers the extension's ping and detectJob
messages, streams accepted jobs on /events and, when DATABASE_URL is set,
keeps a detection history.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appCfg
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector, err := buildDetector(cfg, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithLoader(fetch.NewLoader(
			fetch.WithBrowserFallback(cfg.UseBrowser),
			fetch.WithBrowserTimeout(cfg.BrowserTimeoutDuration()),
			fetch.WithLogger(logger),
		)),
	}

	if cfg.DatabaseURL != "" {
		database, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		opts = append(opts, server.WithStore(database))
	} else {
		logger.Info("DATABASE_URL not set, detection history disabled")
	}

	srv, err := server.New(server.Config{
		Port:        cfg.Port,
		ScanOptions: cfg.ScanOptions(),
	}, detector, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

func connectDB(ctx context.Context, databaseURL string) (*db.DB, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	logger.Info("connected to database", zap.String("table", "job_detections"))
	return database, nil
}
