package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-research-be/internal/bootstrap"
	"ai-research-be/internal/config"
	"ai-research-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB); err != nil {
		log.Panicf("Unable to migrate schema: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Start Background Services
	log.Println("Background: Starting Consumer Service...")
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Panicf("Background Consumer Error: %v", err)
	}

	log.Println("Background: Starting Ingestion Scheduler...")
	container.IngestionService.Start(ctx, time.Duration(cfg.Threads.IngestPollIntervalSec)*time.Second)

	log.Println("Background: Starting Thread Cleanup Loop...")
	container.ThreadManager.StartCleanupLoop(
		ctx,
		time.Duration(cfg.Threads.CleanupIntervalMin)*time.Minute,
		time.Duration(cfg.Threads.MaxThreadAgeHours)*time.Hour,
	)

	// 5. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	container.VectorStore.Flush()
	if err := container.Logger.Sync(); err != nil {
		log.Printf("Logger sync: %v", err)
	}
}
