// The watcher subscribes to the node's pending-transaction feed, decodes
// router calldata, and publishes one envelope per swap leg onto the bus.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/swapscan/backend/internal/bus"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/mempool"
	"github.com/swapscan/backend/internal/rpcpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := rpcpool.New(cfg.HTTPRPCURLs, cfg.WSSRPCURL)
	if err != nil {
		log.Fatalf("rpc pool: %v", err)
	}

	producer := bus.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("watcher starting: chain=%d wss=%s brokers=%v topic=%s",
		cfg.ChainID, cfg.WSSRPCURL, cfg.KafkaBrokers, cfg.KafkaTransactionsTopic)

	tap := mempool.NewTap(cfg, pool, producer)
	if err := tap.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("tap: %v", err)
	}
	log.Println("watcher stopped")
}
