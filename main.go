package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"civicpulse-be/config"
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"
	"civicpulse-be/repositories"
	"civicpulse-be/routes"
	"civicpulse-be/services"
	"civicpulse-be/utils"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logger.WithField("service", "civicpulse")

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()

	db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer db.Close(ctx)
	log.Info("MongoDB connection established")

	issueStore := repositories.NewMongoIssueStore(db.DB)
	voteLedger := repositories.NewMongoVoteLedger(db.DB)
	userStore := repositories.NewMongoUserStore(db.DB)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := issueStore.EnsureIndexes(indexCtx); err != nil {
		log.WithError(err).Fatal("failed to create issue indexes")
	}
	if err := voteLedger.EnsureIndexes(indexCtx); err != nil {
		log.WithError(err).Fatal("failed to create vote indexes")
	}
	if err := userStore.EnsureIndexes(indexCtx); err != nil {
		log.WithError(err).Fatal("failed to create user indexes")
	}

	// Redis backs the rate-limit counters when configured; otherwise an
	// in-process TTL store serves a single instance.
	var limiter middlewares.CounterStore
	if cfg.RedisAddr != "" {
		redisClient, err := config.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		limiter = middlewares.NewRedisCounterStore(redisClient, "ratelimit:issues")
		log.Info("Redis connection established")
	} else {
		memStore := middlewares.NewMemoryCounterStore(time.Minute)
		defer memStore.Stop()
		limiter = memStore
		log.Info("using in-memory rate limit counters")
	}

	tx := repositories.NewMongoTxRunner(db.Client)
	notifier := utils.NewLogNotifier(log)

	issueService := services.NewIssueService(issueStore, voteLedger, userStore, tx, notifier, log)
	voteService := services.NewVoteService(issueStore, voteLedger, tx, log)
	statsService := services.NewStatsService(issueStore, voteLedger)

	issueController := controllers.NewIssueController(issueService, voteService, log)
	statsController := controllers.NewStatsController(statsService, log)
	authController := controllers.NewAuthController(userStore, cfg, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsConfig))

	routes.AuthRoutes(r, authController, cfg)
	routes.IssueRoutes(r, issueController, cfg, limiter)
	routes.StatsRoutes(r, statsController, cfg)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	log.WithField("port", cfg.Port).Info("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
