package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopisegar/api/internal/config"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/router"
	"github.com/kopisegar/api/internal/storage"
	"github.com/kopisegar/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	photos, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Unable to prepare upload dir: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, hub, photos)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
