package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/watertrack/complaints-api/config"
	"github.com/watertrack/complaints-api/controllers"
	"github.com/watertrack/complaints-api/middleware"
	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

func main() {
	log.Println("Starting complaint tracking API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.User{}, &models.Complaint{}, &models.StatusUpdate{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Wire the complaint engine
	services.InitComplaintService(db, logger, cfg.ComplaintPrefix)
	services.InitAnalyticsService(db, cfg.Location())

	// Optional Redis cache in front of the public dashboard
	if _, err := services.InitDashboardCache(cfg.RedisURL, time.Minute); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Photo storage is optional in development
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3: %v", err)
		}
		services.InitImageService(s3Service)
	} else {
		log.Println("AWS_S3_BUCKET not set, photo uploads disabled")
	}

	router := setupRouter(cfg)

	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the gin engine with CORS and all API routes
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	{
		// Public endpoints
		v1.GET("/health", healthCheck)
		v1.GET("/dashboard", controllers.PublicDashboard)

		// Everything else requires a valid token
		authed := v1.Group("")
		authed.Use(middleware.EnsureValidToken(cfg))
		{
			authed.POST("/users", controllers.CreateUser)
			authed.GET("/users/me", controllers.GetCurrentUser)

			authed.POST("/uploads", controllers.UploadImage)

			authed.POST("/complaints", controllers.CreateComplaint)
			authed.GET("/complaints", controllers.ListMyComplaints)
			authed.GET("/complaints/:code", controllers.GetComplaint)
			authed.POST("/complaints/:code/status", controllers.UpdateComplaintStatus)
			authed.POST("/complaints/:code/assign", controllers.AssignComplaint)
			authed.POST("/complaints/:code/rating", controllers.RateComplaint)

			authed.GET("/staff/dashboard", controllers.StaffDashboard)
			authed.GET("/staff/unassigned", controllers.UnassignedComplaints)

			authed.GET("/manager/dashboard", controllers.ManagerDashboard)
			authed.GET("/manager/complaints", controllers.AllComplaints)
			authed.GET("/manager/staff-performance", controllers.StaffPerformanceReport)
			authed.GET("/manager/export", controllers.ExportComplaints)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Complaint tracking API is running",
	})
}
