package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"bloodinsight/internal/api"
	"bloodinsight/internal/auth"
	"bloodinsight/internal/config"
	"bloodinsight/internal/redis"
	"bloodinsight/internal/service/feedback"
	"bloodinsight/internal/service/gemini"
	"bloodinsight/internal/service/report"
	"bloodinsight/internal/service/settings"
	"bloodinsight/internal/service/usage"
	"bloodinsight/internal/storage"
	"bloodinsight/internal/upload"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BLOODINSIGHT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// redis only backs the token cache; run without it when unconfigured
	var cache *redis.Client
	if cfg.Redis.Host != "" {
		cache, err = redis.NewClient(cfg)
		if err != nil {
			log.Printf("redis unavailable, token cache disabled: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	tokenTTL := 72 * time.Hour
	if cfg.BasicConfig.TokenTTLHours > 0 {
		tokenTTL = time.Duration(cfg.BasicConfig.TokenTTLHours) * time.Hour
	}

	authSvc := auth.NewService(db, cache, tokenTTL)
	authSvc.StartTokenJanitor(context.Background(), time.Hour)
	settingsSvc := settings.NewService(db)
	usageSvc := usage.NewService(db)
	reportSvc := report.NewService(db)
	feedbackSvc := feedback.NewService(db)
	geminiSvc := gemini.NewService(settingsSvc, usageSvc, nil, cfg.Gemini.APIKey, cfg.Gemini.Model)
	validator := upload.NewValidator(os.Getenv("MAX_UPLOAD_BYTES"))

	router := gin.Default()
	handler := api.NewHandler(authSvc, geminiSvc, settingsSvc, reportSvc, feedbackSvc, usageSvc, validator)
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s (db=%s, max_upload=%d bytes)", addr, dbType, validator.MaxBytes())
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
