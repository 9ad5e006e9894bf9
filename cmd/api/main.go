// The api process serves stored opportunities over HTTP and relays live
// detection events from Redis Pub/Sub to WebSocket clients.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swapscan/backend/internal/api"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/store"
	"github.com/swapscan/backend/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	hub := stream.NewHub()
	if cfg.RedisAddr != "" {
		rs, err := stream.NewRedisStream(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("redis unavailable, websocket feed will be silent: %v", err)
		} else {
			defer rs.Close()
			if _, err := hub.Attach(rs); err != nil {
				log.Printf("stream attach failed: %v", err)
			}
		}
	}

	server := api.NewServer(cfg, st, hub)

	go func() {
		log.Printf("api listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("api stopped")
}
