package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/monday-task-gateway/internal/config"
	"github.com/yukikurage/monday-task-gateway/internal/database"
	"github.com/yukikurage/monday-task-gateway/internal/handlers"
	"github.com/yukikurage/monday-task-gateway/internal/middleware"
	"github.com/yukikurage/monday-task-gateway/internal/monday"
	"github.com/yukikurage/monday-task-gateway/internal/repository"
	"github.com/yukikurage/monday-task-gateway/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to the local history database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize the monday client
	client, err := monday.NewClient(monday.ClientConfig{
		Token:  cfg.MondayAPIToken,
		APIURL: cfg.MondayAPIURL,
		Proxy: monday.ProxyConfig{
			Type:     cfg.ProxyType,
			Host:     cfg.ProxyHost,
			Port:     cfg.ProxyPort,
			Username: cfg.ProxyUsername,
			Password: cfg.ProxyPassword,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create monday client: %v", err)
	}

	// Initialize directories and services
	boards := monday.NewBoardDirectory(client)
	people := monday.NewPeopleDirectory(client, boards)
	records := repository.NewTaskRecordRepository(database.GetDB())
	upserts := services.NewUpsertService(client, boards, people, records, cfg.MondayBoardID, cfg.MondayAccountURL)
	jobs := services.NewJobRegistry()

	// Verify connectivity (non-fatal: the gateway can start while
	// monday is briefly unreachable)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := upserts.TestConnection(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	cancel()

	if cfg.APIKey == "" {
		log.Println("Warning: GATEWAY_API_KEY is empty, authentication is disabled")
	}

	// Initialize handlers
	boardURL := fmt.Sprintf("%s/boards/%d", cfg.MondayAccountURL, cfg.MondayBoardID)
	taskHandler := handlers.NewTaskHandler(upserts, jobs, records, boardURL)
	peopleHandler := handlers.NewPeopleHandler(people, cfg.MondayBoardID)

	// Initialize Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Monday Task Gateway is running",
		})
	})

	// API routes (protected)
	api := r.Group("/api")
	api.Use(middleware.RequireAPIKey(cfg.APIKey))
	{
		api.POST("/tasks", taskHandler.CreateTasks)
		api.GET("/tasks", taskHandler.ListHistory)
		api.GET("/jobs/:id", taskHandler.GetJob)
		api.GET("/people", peopleHandler.ListPeople)
	}

	// Start server
	log.Printf("Server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
