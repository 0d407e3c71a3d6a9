package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/promoloop/publish-engine/configs"
	"github.com/promoloop/publish-engine/internal/api/handlers"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/engine"
	job "github.com/promoloop/publish-engine/internal/jobs"
	"github.com/promoloop/publish-engine/internal/publisher"
	"github.com/promoloop/publish-engine/internal/queue"
	"github.com/promoloop/publish-engine/internal/repository"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	postRepo := repository.NewPostRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	publishLogRepo := repository.NewPublishLogRepository(db)

	credentialManager := credential.NewManager(*cfg, connectionRepo)
	mediaFetcher := publisher.NewMediaFetcher(*cfg)

	registry := publisher.NewRegistry(
		publisher.NewFacebookPublisher(),
		publisher.NewInstagramPublisher(),
		publisher.NewTwitterPublisher(),
		publisher.NewLinkedinPublisher(),
		publisher.NewTikTokPublisher(),
		publisher.NewWordPressPublisher(mediaFetcher),
		publisher.NewBloggerPublisher(),
		publisher.NewMediumPublisher(),
	)

	publishEngine := engine.New(*cfg, postRepo, postMediaRepo, publishLogRepo, credentialManager, registry)

	worker := handlers.NewWorkerHandler(*cfg, publishEngine)
	app.Post("/worker/run", worker.RunBatch)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "platforms": registry.Platforms()})
	})

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(connectionRepo, credentialManager)
	reaperJob := job.NewReaperJob(postRepo)

	// queue
	queueW := queue.NewQueue(publishEngine)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 00h05m00s", reaperJob.ResetStuckPosts)
	c.AddFunc("@every 00h05m00s", func() {
		if err := queue.EnqueueBatch(client, queue.PublishBatchPayload{Reason: "cron"}); err != nil {
			log.Printf("Failed to enqueue batch tick: %v", err)
		}
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishBatch, queueW.HandlePublishBatchTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Worker is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down worker...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Worker shutdown complete.")
}
