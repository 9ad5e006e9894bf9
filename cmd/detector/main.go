// The detector consumes decoded-swap envelopes from the bus, evaluates
// each against live pool state, persists positive verdicts to Postgres,
// and runs the retention sweep. Detection events go out over Redis
// Pub/Sub for the api process to fan out.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/swapscan/backend/internal/bus"
	"github.com/swapscan/backend/internal/cache"
	"github.com/swapscan/backend/internal/chain"
	"github.com/swapscan/backend/internal/cleanup"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/detect"
	"github.com/swapscan/backend/internal/ingest"
	"github.com/swapscan/backend/internal/rpcpool"
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

	pool, err := rpcpool.New(cfg.HTTPRPCURLs, cfg.WSSRPCURL)
	if err != nil {
		log.Fatalf("rpc pool: %v", err)
	}

	reader := chain.NewReader(pool)
	caches := cache.New(cfg.ChainID, st, reader)
	evaluator := detect.NewEvaluator(cfg, caches, reader)

	var (
		deduper   stream.Deduper
		publisher stream.Publisher
	)
	if cfg.RedisAddr != "" {
		rs, err := stream.NewRedisStream(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("redis unavailable, using in-process fallbacks: %v", err)
		} else {
			defer rs.Close()
			deduper, publisher = rs, rs
		}
	}
	if deduper == nil {
		deduper = stream.NewLocalDeduper()
		publisher = stream.NewLocalStream()
	}

	producer := bus.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
	defer producer.Close()

	ingestor := ingest.New(cfg, st, evaluator, pool, deduper, publisher, producer)
	consumer, err := bus.NewConsumer(cfg.KafkaBrokers, cfg.KafkaClientID, cfg.KafkaGroupID, cfg.KafkaTransactionsTopic, ingestor.Handle)
	if err != nil {
		log.Fatalf("consumer: %v", err)
	}
	defer consumer.Close()

	sweeper := cleanup.NewLoop(st, cfg.ChainID, time.Duration(cfg.CleanupIntervalMin)*time.Minute)

	log.Printf("detector starting: chain=%d group=%s topic=%s",
		cfg.ChainID, cfg.KafkaGroupID, cfg.KafkaTransactionsTopic)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("consumer exited: %v", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("cleanup exited: %v", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()
	log.Println("detector stopped")
}
