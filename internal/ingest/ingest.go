// Package ingest is the consumer side of the bus: it gates incoming
// envelopes (age, already-mined, duplicate delivery), runs the evaluator,
// and persists positive verdicts as opportunities.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/swapscan/backend/internal/bus"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/decode"
	"github.com/swapscan/backend/internal/detect"
	"github.com/swapscan/backend/internal/metrics"
	"github.com/swapscan/backend/internal/rpcpool"
	"github.com/swapscan/backend/internal/store"
	"github.com/swapscan/backend/internal/stream"
)

const (
	// maxMessageAge drops stale replays: a mempool observation older than
	// this is long since mined or evicted.
	maxMessageAge = 10 * time.Minute

	// dedupeTTL bounds duplicate-delivery suppression.
	dedupeTTL = 15 * time.Minute
)

// Ingestor handles envelopes from the transactions topic.
type Ingestor struct {
	cfg       *config.Config
	store     *store.Store
	evaluator *detect.Evaluator
	pool      *rpcpool.Pool
	deduper   stream.Deduper
	publisher stream.Publisher
	producer  *bus.Producer

	now func() time.Time
}

// New wires an ingestor. producer may be nil to disable the opportunities
// topic.
func New(cfg *config.Config, st *store.Store, evaluator *detect.Evaluator, pool *rpcpool.Pool, deduper stream.Deduper, publisher stream.Publisher, producer *bus.Producer) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		store:     st,
		evaluator: evaluator,
		pool:      pool,
		deduper:   deduper,
		publisher: publisher,
		producer:  producer,
		now:       time.Now,
	}
}

// Handle processes one envelope. It satisfies bus.Handler; returned errors
// are logged by the consumer, never fatal to the group.
func (i *Ingestor) Handle(ctx context.Context, env *bus.Envelope, brokerTime time.Time) error {
	start := i.now()

	if env.Age(start, brokerTime) > maxMessageAge {
		metrics.MessagesSkipped.WithLabelValues("stale").Inc()
		return nil
	}
	if env.BlockNumber != nil {
		metrics.MessagesSkipped.WithLabelValues("already_mined").Inc()
		return nil
	}

	// Duplicate delivery of the same sub-action (rebalance replay,
	// producer retry). Distinct sub-actions of one transaction share the
	// txHash but differ in method/legs, so they pass.
	swap := env.DecodedTx
	dedupeKey := env.TxHash + "|" + swap.Method + "|" + swap.TokenIn + "|" + swap.TokenOut + "|" + swap.AmountIn
	if first, err := i.deduper.FirstSeen(ctx, dedupeKey, dedupeTTL); err != nil {
		slog.Warn("dedupe check failed, processing anyway", "txHash", env.TxHash, "error", err)
	} else if !first {
		metrics.MessagesSkipped.WithLabelValues("duplicate").Inc()
		return nil
	}

	// Evaluate and fetch the current head in parallel; the block number
	// only annotates the persisted row.
	var (
		wg           sync.WaitGroup
		verdict      *detect.Verdict
		verdictErr   error
		currentBlock uint64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		verdict, verdictErr = i.evaluator.Detect(ctx, env.TxHash, swap, env.RouterAddress)
	}()
	go func() {
		defer wg.Done()
		n, err := i.pool.BlockNumber(ctx)
		if err != nil {
			slog.Warn("block number fetch failed", "error", err)
			return
		}
		currentBlock = n
	}()
	wg.Wait()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	if verdictErr != nil {
		return verdictErr
	}
	if !verdict.IsOpportunity {
		metrics.Verdicts.WithLabelValues("rejected").Inc()
		slog.Debug("not an opportunity", "txHash", env.TxHash, "reason", verdict.Reason)
		return nil
	}

	status := store.StatusDetected
	outcome := "detected"
	if verdict.IsExpired {
		status = store.StatusExpired
		outcome = "expired"
	}
	metrics.Verdicts.WithLabelValues(outcome).Inc()

	opp := &store.Opportunity{
		ChainID:      i.cfg.ChainID,
		TxHash:       env.TxHash,
		Router:       env.RouterAddress,
		RouterFamily: string(swap.RouterFamily),
		TokenIn:      swap.TokenIn,
		TokenOut:     swap.TokenOut,
		AmountIn:     swap.AmountIn,
		AmountOutMin: swap.AmountOutMin,
		AmountInMax:  swap.AmountInMax,
		Fee:          swap.Fee,
		PoolAddress:  verdict.PoolAddress,
		Method:       swap.Method,
		Recipient:    swap.Recipient,
		Deadline:     swap.Deadline,
		BlockNumber:  int64(currentBlock),
		Status:       status,
		Metadata:     buildMetadata(swap, verdict),
	}
	if err := i.store.UpsertOpportunity(ctx, opp); err != nil {
		// PersistenceError: logged by the consumer, no retry loop here.
		return err
	}

	slog.Info("opportunity persisted",
		"txHash", env.TxHash, "status", status,
		"priceImpact", verdict.PriceImpact, "profit", verdict.ExpectedProfitFormatted)

	i.publish(ctx, env.TxHash, status, opp, verdict)
	i.publishToBus(opp)
	return nil
}

// publishToBus mirrors the persisted row onto the opportunities topic for
// downstream consumers outside this service. Best effort.
func (i *Ingestor) publishToBus(opp *store.Opportunity) {
	if i.producer == nil {
		return
	}
	payload, err := json.Marshal(opp)
	if err != nil {
		slog.Warn("opportunity marshal failed", "txHash", opp.TxHash, "error", err)
		return
	}
	if err := i.producer.PublishRaw(i.cfg.KafkaOpportunitiesTopic, opp.TxHash, payload); err != nil {
		slog.Warn("opportunities topic publish failed", "txHash", opp.TxHash, "error", err)
	}
}

// buildMetadata assembles the free-form metadata bag stored with the row.
func buildMetadata(swap *decode.DecodedSwap, verdict *detect.Verdict) map[string]interface{} {
	return map[string]interface{}{
		"decodedTx":               swap,
		"reason":                  verdict.Reason,
		"priceImpact":             verdict.PriceImpact,
		"expectedProfit":          verdict.ExpectedProfit,
		"expectedProfitFormatted": verdict.ExpectedProfitFormatted,
		"amountOut":               verdict.AmountOut,
		"decimalsIn":              verdict.DecimalsIn,
		"decimalsOut":             verdict.DecimalsOut,
		"timeToSubmitSeconds":     verdict.TimeToSubmitSeconds,
		"deadlineTimestamp":       verdict.DeadlineTimestamp,
		"isExpired":               verdict.IsExpired,
	}
}

// publish emits the live event; failures are logged only, the table is the
// source of truth.
func (i *Ingestor) publish(ctx context.Context, txHash, status string, opp *store.Opportunity, verdict *detect.Verdict) {
	if i.publisher == nil {
		return
	}
	typ := stream.EventOpportunityDetected
	if status == store.StatusExpired {
		typ = stream.EventOpportunityExpired
	}
	event := stream.NewEvent(typ, txHash, map[string]interface{}{
		"router":       opp.Router,
		"routerFamily": opp.RouterFamily,
		"tokenIn":      opp.TokenIn,
		"tokenOut":     opp.TokenOut,
		"pool":         opp.PoolAddress,
		"priceImpact":  verdict.PriceImpact,
		"profit":       verdict.ExpectedProfitFormatted,
	})
	if err := i.publisher.Publish(ctx, event); err != nil {
		slog.Warn("stream publish failed", "txHash", txHash, "error", err)
	}
}
