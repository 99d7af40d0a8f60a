package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"report-mail-ingest/internal/attachment"
	"report-mail-ingest/internal/charsetx"
	"report-mail-ingest/internal/config"
	"report-mail-ingest/internal/database"
	"report-mail-ingest/internal/extract"
	"report-mail-ingest/internal/ingest"
	"report-mail-ingest/internal/mailsource"
	"report-mail-ingest/internal/metrics"
	"report-mail-ingest/internal/objectstore"
	"report-mail-ingest/internal/repository"
	"report-mail-ingest/internal/scheduler"
	"report-mail-ingest/internal/segment"
	"report-mail-ingest/internal/server"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Report Mail Ingest Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	m := metrics.NewMetrics()

	// Initialize object storage
	store, err := objectstore.NewStore(objectstore.Config{
		SecretID:     cfg.Cos.SecretID,
		SecretKey:    cfg.Cos.SecretKey,
		SessionToken: cfg.Cos.SessionToken,
		Region:       cfg.Cos.Region,
		Bucket:       cfg.Cos.Bucket,
	})
	if err != nil {
		logrus.Fatalf("Failed to create object store client: %v", err)
	}

	// Initialize the ingestion pipeline
	repo := repository.New(db)
	repo.SetDedupJitter(
		time.Duration(cfg.Ingest.DedupJitterMinSeconds)*time.Second,
		time.Duration(cfg.Ingest.DedupJitterMaxSeconds)*time.Second,
	)

	if err := os.MkdirAll(cfg.Ingest.StagingDir, 0o755); err != nil {
		logrus.Fatalf("Failed to create attachment staging directory: %v", err)
	}
	proc := attachment.NewProcessor(cfg.Ingest.StagingDir, store, extract.NewDocExtractor())

	seg := segment.NewClient(cfg.Segment.URL, cfg.Segment.IndexName,
		time.Duration(cfg.Segment.TimeoutSeconds)*time.Second)

	mail := mailsource.NewClient(mailsource.Config{
		Host:         cfg.Mailbox.Host,
		Port:         cfg.Mailbox.Port,
		Username:     cfg.Mailbox.Username,
		Password:     cfg.Mailbox.Password,
		LoginRetries: cfg.Mailbox.LoginRetries,
		LoginBackoff: time.Duration(cfg.Mailbox.LoginBackoff) * time.Second,
	})

	dec := charsetx.NewDecoder(cfg.Ingest.EncodingFallbacks...)
	builder := ingest.NewBuilder(repo, seg, proc)
	fetcher := ingest.NewFetcher(mail, repo, builder, dec, m)

	// Initialize scheduler
	sched := scheduler.New(cfg.Scheduler.IntervalMinutes, fetcher)

	// Setup HTTP server
	handlers := server.NewHandlers(db, repo, sched)
	router := server.SetupRouter(handlers)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start scheduler
	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}
