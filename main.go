package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"review-radar/config"
	"review-radar/models"
	"review-radar/providers"
	"review-radar/providers/musinsa"
	"review-radar/services"
	"review-radar/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	analysesCompletedCounter prometheus.Counter
	analysesFailedCounter    prometheus.Counter
)

func init() {
	analysesCompletedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analyses_completed_total",
			Help: "Total number of analyses that reached the completed state.",
		},
	)
	analysesFailedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analyses_failed_total",
			Help: "Total number of analyses that reached the failed state.",
		},
	)
	prometheus.MustRegister(analysesCompletedCounter, analysesFailedCounter)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Analysis{}, &models.AIModel{}, &models.AIJob{}, &models.Feedback{})

	// Seeding
	seedBaseModel(db, cfg, logging)

	// Setup Providers
	enabledProviderNames := strings.Split(cfg.EnabledProviders, ",")
	var enabledProviders []providers.Provider
	for _, name := range enabledProviderNames {
		switch strings.TrimSpace(name) {
		case "musinsa":
			enabledProviders = append(enabledProviders, musinsa.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	if len(enabledProviders) == 0 {
		logging.Fatal("No valid providers enabled. Check ENABLED_PROVIDERS in .env")
	}
	logging.Info("Active providers loaded", zap.Strings("providers", enabledProviderNames))

	// Optional artifact store: sync the latest model files before any
	// worker runs.
	var s3Client *s3.Client
	if cfg.ModelS3Bucket != "" {
		c, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		s3Client = c
		if err := storage.DownloadDir(context.Background(), c, cfg.ModelS3Bucket, "models/base", cfg.ModelBasePath); err != nil {
			logging.Warn("Model artifact sync failed, using local files", zap.Error(err))
		} else {
			logging.Info("Model artifacts synced from S3")
		}
	}

	// Setup Services
	runner := services.NewPipelineRunner(cfg, logging)
	summarizer := services.NewSummarizer(cfg, logging)
	analysisService := services.NewAnalysisService(cfg, db, logging, enabledProviders, runner, summarizer)
	retrainService := services.NewRetrainService(cfg, db, logging, s3Client)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupAnalysisRoutes(router, analysisService, logging)
	setupFeedbackRoutes(router, db, logging)
	setupModelRoutes(router, db, retrainService, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.RetrainCron, func() {
		logging.Info("Running scheduled retrain job...")
		retrainService.RunPending(context.Background())
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupAnalysisRoutes(router *gin.Engine, svc *services.AnalysisService, log *zap.Logger) {
	rg := router.Group("/analyses")

	// POST - create a new analysis and start it in the background
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			URL string `json:"url" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'url' field is required."})
			return
		}

		analysis, err := svc.Create(req.URL)
		if err != nil {
			log.Error("Failed to create analysis", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create analysis"})
			return
		}

		go func(id uint, url string) {
			if err := svc.Process(context.Background(), id, url); err != nil {
				analysesFailedCounter.Inc()
				log.Error("Async analysis failed", zap.Uint("analysis_id", id), zap.Error(err))
			} else {
				analysesCompletedCounter.Inc()
			}
		}(analysis.ID, analysis.SourceURL)

		c.JSON(http.StatusAccepted, analysis)
	})

	// GET - poll one analysis
	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
			return
		}
		analysis, err := svc.Get(uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			log.Error("DB error fetching analysis", zap.Uint64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, analysis)
	})

	// GET - list analyses, optionally filtered by status
	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		analyses, err := svc.List(c.Query("status"), limit, offset)
		if err != nil {
			log.Error("DB error listing analyses", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, analyses)
	})
}

func setupFeedbackRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/feedback")

	// POST - record a helpful/not-helpful vote for an analysis
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			AnalysisID uint  `json:"analysis_id" binding:"required"`
			Helpful    *bool `json:"helpful" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'analysis_id' and 'helpful' are required."})
			return
		}

		var analysis models.Analysis
		if err := db.First(&analysis, req.AnalysisID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			log.Error("DB error checking analysis for feedback", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		feedback := models.Feedback{AnalysisID: req.AnalysisID, Helpful: *req.Helpful}
		if err := db.Create(&feedback).Error; err != nil {
			log.Error("Failed to create feedback", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save feedback"})
			return
		}
		c.JSON(http.StatusCreated, feedback)
	})
}

func setupModelRoutes(router *gin.Engine, db *gorm.DB, retrain *services.RetrainService, log *zap.Logger) {
	rg := router.Group("/models")

	// GET - list registered model versions
	rg.GET("/", func(c *gin.Context) {
		var aiModels []models.AIModel
		if err := db.Order("created_at desc").Find(&aiModels).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, aiModels)
	})

	// GET - the currently active model
	rg.GET("/active", func(c *gin.Context) {
		var aiModel models.AIModel
		if err := db.Where("active = ?", true).First(&aiModel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no active model"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, aiModel)
	})

	// POST - enqueue a training job; the scheduled batch run picks it up
	rg.POST("/retrain", func(c *gin.Context) {
		job, err := retrain.Enqueue()
		if err != nil {
			log.Error("Failed to enqueue training job", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
			return
		}
		c.JSON(http.StatusAccepted, job)
	})

	// GET - list training jobs
	rg.GET("/jobs", func(c *gin.Context) {
		var jobs []models.AIJob
		if err := db.Order("submitted_at desc").Limit(50).Find(&jobs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, jobs)
	})
}

func seedBaseModel(db *gorm.DB, cfg *config.Config, logger *zap.Logger) {
	var count int64
	db.Model(&models.AIModel{}).Count(&count)
	if count > 0 {
		return
	}
	base := models.AIModel{
		ModelName:   "trust-classifier",
		Version:     "base",
		ArtifactURL: cfg.ModelBasePath,
		Description: "bundled base model",
		Active:      true,
	}
	if err := db.Create(&base).Error; err != nil {
		logger.Warn("Failed to seed base model", zap.Error(err))
	} else {
		logger.Info("Base model seeded.")
	}
}
