package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/database"
	"github.com/xelth-com/parcprepgo/internal/handlers"
	"github.com/xelth-com/parcprepgo/internal/services/odoo"
	"github.com/xelth-com/parcprepgo/internal/store"
	"github.com/xelth-com/parcprepgo/internal/sync"
	"github.com/xelth-com/parcprepgo/internal/websocket"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		log.Fatalf("Failed to load sync configuration: %v", err)
	}

	// 2. Open the storage handle; released once in the shutdown path below
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Schema synchronized successfully")

	// 3. Change feed and store
	hub := websocket.NewHub()
	go hub.Run()

	st := store.New(db.DB, store.WithNotifier(hub))

	// 4. Odoo sink and sync engine
	var syncEngine *sync.SyncEngine
	switch {
	case !syncCfg.Enabled:
		log.Println("Odoo Sync disabled: SYNC_ENABLED=false")
	case !cfg.Odoo.SyncEnabled():
		log.Println("Odoo Sync disabled: no Odoo endpoint configured")
	default:
		sink, err := odoo.NewSink(cfg.Odoo)
		if err != nil {
			log.Fatalf("Failed to configure Odoo sink: %v", err)
		}
		syncEngine = sync.NewSyncEngine(st, sink, syncCfg, cfg.AppID)
		if err := syncEngine.Start(); err != nil {
			log.Printf("⚠️ Sync Engine: Failed to start: %v", err)
		}
	}

	// 5. HTTP router
	router := handlers.NewRouter(st, syncEngine, hub, syncCfg.HistoryKeep)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server (%s, %s) starting on port %s\n", cfg.NodeEnv, db.Driver(), cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// In-flight pushes finish before the handle is released
	if syncEngine != nil {
		syncEngine.Stop()
	}
	hub.Stop()

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
