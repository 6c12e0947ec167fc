package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/config"
	"github.com/gleeclub/portal/backend/handler"
	"github.com/gleeclub/portal/backend/pkg/logger"
	"github.com/gleeclub/portal/backend/pkg/pdfdoc"
	"github.com/gleeclub/portal/backend/service"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully", "path", configPath)
	return cfg, nil
}

func openStore(cfg *config.Config) (*service.GormStore, error) {
	db, err := service.OpenDatabase(&cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if err := service.AutoMigrate(db); err != nil {
		return nil, err
	}
	return service.NewGormStore(db), nil
}

func openDocumentStore(ctx context.Context, cfg *config.Config) (service.DocumentStore, error) {
	if cfg.Minio.Endpoint == "" {
		slog.Warn("minio endpoint not configured, keeping documents in memory")
		return service.NewMemoryDocumentStore(), nil
	}

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MINIO service: %w", err)
	}
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure MINIO bucket: %w", err)
	}
	return minioSvc, nil
}

var rootCmd = &cobra.Command{
	Use:          "glee-sign",
	Short:        "Contract signing service for the glee club portal",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	docs, err := openDocumentStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	signing := service.NewSigningService(
		store,
		docs,
		pdfdoc.NewRenderer(pdfdoc.Options{Compress: cfg.PDF.Compress}),
		service.NewTaxFormRequester(&cfg.Notify),
	)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, handler.Dependencies{
		Store:   store,
		Docs:    docs,
		Signing: signing,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := openStore(cfg); err != nil {
			return err
		}
		fmt.Printf("Schema migrated (%s)\n", cfg.Database.Driver)
		return nil
	},
}

var (
	renderTitle string
	renderOut   string
)

var renderCmd = &cobra.Command{
	Use:   "render <contract.txt>",
	Short: "Render a contract text file to an unsigned PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read contract: %w", err)
		}

		title := renderTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		out := renderOut
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".pdf"
		}

		res, err := pdfdoc.NewRenderer(pdfdoc.Options{Compress: true}).Render(pdfdoc.Document{
			ContractID: "preview",
			Title:      title,
			Body:       string(body),
			Slots: []pdfdoc.Slot{
				{Label: "Artist Signature"},
				{Label: "Glee Club Administrator"},
			},
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, res.Bytes, 0o644); err != nil {
			return fmt.Errorf("failed to write pdf: %w", err)
		}

		fmt.Printf("Wrote %s (%d pages)\n", out, res.Pages)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	renderCmd.Flags().StringVar(&renderTitle, "title", "", "document title (defaults to the file name)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output path (defaults to <input>.pdf)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(renderCmd)
}
