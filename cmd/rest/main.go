package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-notebook-be/internal/bootstrap"
	"ai-notebook-be/internal/config"
	"ai-notebook-be/internal/server"
	"ai-notebook-be/internal/tracer"
	"ai-notebook-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment == "production")
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 5. Start Background Services
	if err := container.Start(context.Background()); err != nil {
		log.Fatalf("Unable to start background services: %v", err)
	}

	// 6. Run Server until SIGINT/SIGTERM
	srv := server.New(cfg, container)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		err := srv.Shutdown(shutdownTimeout)
		// Open workspaces flush their pending cells before the bus closes.
		container.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
