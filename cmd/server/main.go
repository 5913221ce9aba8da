package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heysheet/internal"
	"heysheet/internal/analytics"
	"heysheet/internal/config"
	"heysheet/internal/handlers"
	"heysheet/internal/notify"
	"heysheet/internal/redis"
	"heysheet/internal/services"
	"heysheet/internal/sheets"
	"heysheet/internal/storage"
	"heysheet/internal/uploads"
	"heysheet/internal/webhook"
	"heysheet/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(cfg.Submission.APIKeys) == 0 {
		log.Printf("Warning: HEYSHEET_API_KEYS is empty, every submission will be rejected")
	}

	if err := internal.InitDB(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize storage client based on configuration
	ctx := context.Background()
	var storageClient storage.StorageClient
	var localStorageClient *storage.LocalStorageClient

	switch cfg.Storage.Type {
	case "local":
		log.Printf("Initializing local storage at: %s", cfg.Storage.LocalPath)
		client, err := storage.NewLocalStorageClient(cfg.Storage.LocalPath, cfg.Storage.LocalURL, cfg.Storage.SecretKey)
		if err != nil {
			log.Fatalf("Failed to initialize local storage client: %v", err)
		}
		storageClient = client
		localStorageClient = client
		log.Printf("Local storage initialized with base URL: %s", cfg.Storage.LocalURL)
	case "gcs":
		log.Printf("Initializing GCS storage with bucket: %s", cfg.GCS.BucketName)
		client, err := storage.NewGCSClient(ctx, cfg.GCS.BucketName, cfg.GCS.ProjectID, cfg.GCS.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize GCS client: %v", err)
		}
		storageClient = client
		log.Printf("GCS storage initialized")
	}
	defer storageClient.Close()

	// Webhook retry queue
	var queue webhook.Queue
	var redisClient *redis.Client
	switch cfg.Webhook.Queue {
	case "redis":
		redisClient, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		queue = webhook.NewRedisQueue(redisClient, "")
		log.Printf("Webhook retries scheduled in redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	default:
		queue = webhook.NewMemoryQueue()
		log.Printf("Webhook retries scheduled in memory; pending retries are lost on restart")
	}

	// Initialize services
	statisticsService := services.NewStatisticsService(internal.DB)
	formService := services.NewFormService(internal.DB, cfg.Submission.DefaultMaxFileSizeMB)
	submissionService := services.NewSubmissionService(internal.DB, statisticsService)
	activityLogService := services.NewActivityLogService(internal.DB)
	deliveryLogService := services.NewDeliveryLogService(internal.DB, statisticsService)

	dispatcher := webhook.NewDispatcher(cfg.Webhook.RequestTimeout)
	retrier := webhook.NewRetrier(dispatcher, queue, deliveryLogService, cfg.Webhook.PollInterval, cfg.Webhook.BatchSize)

	deps := services.PostProcessDeps{
		Slack:    notify.NewSlack(cfg.Webhook.RequestTimeout),
		Webhooks: retrier,
	}
	if cfg.Sheets.CredentialsPath != "" {
		sheetsClient, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsPath)
		if err != nil {
			log.Printf("Warning: Failed to initialize Google Sheets client: %v", err)
		} else {
			deps.Sheets = sheetsClient
			log.Printf("Google Sheets sync enabled")
		}
	}
	if cfg.Gotenberg.URL != "" {
		receiptService, err := services.NewReceiptService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout, storageClient)
		if err != nil {
			log.Printf("Warning: Failed to initialize receipt service: %v", err)
		} else {
			deps.Receipts = receiptService
			log.Printf("PDF receipts enabled with URL: %s, timeout: %s", cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
		}
	}
	postProcessService := services.NewPostProcessService(submissionService, statisticsService, deps)

	pool := worker.NewPool(postProcessService.Handle, worker.Options{
		Workers:     cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  cfg.Worker.RetryDelay,
		OnExhausted: postProcessService.Exhausted,
	})
	pool.Start()

	retrierCtx, stopRetrier := context.WithCancel(context.Background())
	retrierDone := make(chan struct{})
	go func() {
		defer close(retrierDone)
		retrier.Run(retrierCtx)
	}()

	var geo analytics.GeoLocator
	if cfg.Geo.URL != "" {
		geo = analytics.NewIPInfoClient(cfg.Geo.URL, cfg.Geo.Token, cfg.Geo.Timeout)
	}

	// Initialize handlers
	submissionHandler := handlers.NewSubmissionHandler(formService, submissionService, uploads.NewProcessor(storageClient), handlers.SubmissionHandlerOptions{
		APIKeys:      cfg.Submission.APIKeys,
		MaxRequestMB: cfg.Submission.MaxRequestMB,
		Geo:          geo,
		Jobs:         pool,
	})
	webhookHandler := handlers.NewWebhookHandler(retrier)
	dashboardHandler := handlers.NewDashboardHandler(formService, submissionService, statisticsService)
	logsHandler := handlers.NewLogsHandler(activityLogService, deliveryLogService)

	r := gin.Default()
	r.Use(activityLogService.LoggingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"storage":   cfg.Storage.Type,
			"queue":     cfg.Webhook.Queue,
		})
	})

	if localStorageClient != nil && localStorageClient.ServesPublicURLs() {
		r.GET("/files/*filepath", handlers.NewFilesHandler(localStorageClient).ServeFile)
		log.Printf("Local file server enabled at /files/*")
	}

	// Public endpoints are called from any site embedding a form; origins
	// are checked per form by the domain allow-list.
	public := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", handlers.APIKeyHeader},
		MaxAge:          12 * time.Hour,
	})

	v1 := r.Group("/api/v1")
	{
		submit := v1.Group("/submit", public)
		submit.POST("/:slug", submissionHandler.Submit)
		submit.OPTIONS("/:slug", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		v1.GET("/forms/:formId/analytics", dashboardHandler.GetFormAnalytics)
		v1.GET("/forms/:formId/submissions", dashboardHandler.ListSubmissions)

		admin := v1.Group("", handlers.RequireAdminKey(cfg.Admin.APIKey))
		admin.GET("/logs", logsHandler.GetLogs)
		admin.GET("/webhooks/dead-letters", logsHandler.GetDeadLetters)
	}

	r.POST("/functions/v1/webhook-delivery", handlers.RequireAPIKey(cfg.Submission.APIKeys), webhookHandler.Deliver)

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s (environment: %s)", cfg.Server.Port, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Accepted submissions still in the pool finish before the database closes.
	if err := pool.Stop(ctx); err != nil {
		log.Printf("Worker pool stopped before draining: %v", err)
	}
	stopRetrier()
	<-retrierDone
	activityLogService.Flush()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing redis: %v", err)
		}
	}
	if err := internal.CloseDB(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server exited")
}
