package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mdevries/open-index-search/config"
	"github.com/mdevries/open-index-search/internal/api"
	"github.com/mdevries/open-index-search/internal/engine"
	"github.com/mdevries/open-index-search/internal/facade"
	"github.com/mdevries/open-index-search/internal/mongodb"
	"github.com/mdevries/open-index-search/internal/seeder"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Open Index Search server",
	Long: `Start the HTTP server that exposes the configured index facades.
Facades with a MongoDB collection are seeded at startup and kept in
sync by polling for changed documents.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("host", "0.0.0.0", "Host to bind the server to")
	serverCmd.Flags().Int("port", 8080, "Port to bind the server to")

	// Bind flags to viper
	viper.BindPFlag("server.host", serverCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Remove indexes for facades that are no longer configured
	configured := make(map[string]bool, len(cfg.Facades))
	for _, fc := range cfg.Facades {
		configured[fc.Name] = true
	}
	if err := engine.CleanupIndexes(cfg.Search.IndexPath, configured); err != nil {
		return fmt.Errorf("failed to clean up stale indexes: %w", err)
	}

	// Build an index facade per configured facade
	registry := make(map[string]facade.Facade, len(cfg.Facades)+len(cfg.Joins))
	engines := make([]*engine.BleveEngine, 0, len(cfg.Facades))
	defer func() {
		for _, e := range engines {
			if err := e.Close(); err != nil {
				log.Printf("Failed to close index: %v", err)
			}
		}
	}()

	for _, fc := range cfg.Facades {
		eng, err := engine.NewBleveEngine(filepath.Join(cfg.Search.IndexPath, fc.Name), fc.Schema)
		if err != nil {
			return fmt.Errorf("failed to open index for facade %s: %w", fc.Name, err)
		}
		engines = append(engines, eng)

		idx, err := facade.NewIndex(facade.IndexOptions{
			Schema:        facade.SchemaFromConfig(fc.Name, fc.Schema),
			Engine:        eng,
			SupportsClear: fc.SupportsClear,
		})
		if err != nil {
			return fmt.Errorf("failed to build facade %s: %w", fc.Name, err)
		}
		registry[fc.Name] = idx
	}

	// Layer join facades over the base facades
	for _, jc := range cfg.Joins {
		primary := registry[jc.Primary]
		joined := registry[jc.Joined]
		if jc.Cardinality == "one" {
			registry[jc.Name] = facade.NewJoinToOne(jc.Name, primary, joined, jc.On, jc.Attach)
		} else {
			registry[jc.Name] = facade.NewJoinToMany(jc.Name, primary, joined, jc.On, jc.Attach)
		}
	}

	// Seeding is optional: only facades with a collection need MongoDB
	seedCount := 0
	for _, fc := range cfg.Facades {
		if fc.Collection != "" {
			seedCount++
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ready api.ReadyChecker
	if seedCount > 0 {
		mongoClient, err := mongodb.NewClient(cfg.MongoDB)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoClient.Disconnect()

		seederService, err := seeder.NewService(mongoClient, registry, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize seeder: %w", err)
		}

		if err := seederService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seeder: %w", err)
		}
		defer seederService.Stop()

		ready = seederService
	}

	// Initialize API server
	apiServer := api.NewServer(registry, ready)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop the seeder
	cancel()

	// Shutdown server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return err
	}

	log.Println("Server exited")
	return nil
}
