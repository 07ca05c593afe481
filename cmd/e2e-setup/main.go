package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"fitcenter-checkout/internal/config"
	"fitcenter-checkout/internal/infra/db/postgres"
	"fitcenter-checkout/internal/infra/redis"
)

// This script resets checkout state to a clean, predictable baseline
// for manual end-to-end testing against a backend and the relay gateway.
func main() {
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "DDL applied before wiping the journal")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Drop locks, rate-limit windows, cached details and the plan cache.
	if cfg.Redis.URL != "" {
		log.Println("[1/2] Wiping checkout keys from Redis...")
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		n, err := redisClient.DeleteByPrefix(ctx, redis.KeyPrefix)
		if err != nil {
			log.Fatalf("failed to wipe redis keys: %v", err)
		}
		log.Printf("      removed %d keys", n)
	} else {
		log.Println("[1/2] redis.url not set, skipping")
	}

	// 2. Make sure the schema exists and empty the attempt journal.
	if cfg.Database.URL != "" {
		log.Println("[2/2] Resetting the attempt journal...")
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("postgres connection failed: %v", err)
		}
		defer pool.Close()
		ddl, err := os.ReadFile(*schemaPath)
		if err != nil {
			log.Fatalf("read schema %s: %v", *schemaPath, err)
		}
		if err := postgres.ApplySchema(ctx, pool, string(ddl)); err != nil {
			log.Fatalf("%v", err)
		}
		if err := postgres.Truncate(ctx, pool); err != nil {
			log.Fatalf("%v", err)
		}
	} else {
		log.Println("[2/2] database.url not set, skipping")
	}

	log.Println("--- E2E Environment Setup Complete ---")
}
