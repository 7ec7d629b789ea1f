package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"student-registry/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	codec, err := core.NewTokenCodec(cfg)
	if err != nil {
		log.Fatalf("failed to init token codec: %v", err)
	}

	// Redis is optional: without it revocations live in process memory and
	// are swept periodically.
	var redisClient *redis.Client
	var revoked core.RevocationList
	if cfg.RedisURL != "" {
		redisClient, err = core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		revoked = core.NewRedisRevocationList(redisClient)
	} else {
		memList := core.NewMemoryRevocationList()
		memList.StartSweeper(ctx, time.Duration(cfg.RevocationSweepSeconds)*time.Second)
		revoked = memList
	}

	accountRepo := core.NewPgAccountRepository(db)
	studentRepo := core.NewPgStudentRepository(db)
	authService := core.NewRepositoryAuthService(accountRepo)

	if err := core.BootstrapAdmin(ctx, accountRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, codec, revoked, authService, accountRepo, studentRepo, redisClient)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
