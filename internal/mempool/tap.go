// Package mempool implements the pending-transaction tap: a WebSocket
// subscription to newPendingTransactions, per-hash hydration through the
// RPC pool, allow-list routing into the decoder family, and publication of
// decoded swaps onto the bus.
package mempool

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/swapscan/backend/internal/bus"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/decode"
	"github.com/swapscan/backend/internal/metrics"
	"github.com/swapscan/backend/internal/rpcpool"
)

// startupGrace suppresses the burst of stale hashes some providers replay
// right after (re)connecting.
const startupGrace = 1 * time.Second

// Tap owns the subscription lifecycle. Each pending hash is handled in its
// own goroutine; ordering across hashes is not preserved and does not
// matter, the bus key restores per-transaction ordering downstream.
type Tap struct {
	cfg      *config.Config
	pool     *rpcpool.Pool
	producer *bus.Producer
	signer   types.Signer
}

// NewTap wires a tap.
func NewTap(cfg *config.Config, pool *rpcpool.Pool, producer *bus.Producer) *Tap {
	return &Tap{
		cfg:      cfg,
		pool:     pool,
		producer: producer,
		signer:   types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
	}
}

// Run subscribes and processes hashes until ctx is canceled. Subscription
// drops trigger a reconnect with a short pause; the pending feed is not a
// source of truth, so missed hashes are acceptable loss.
func (t *Tap) Run(ctx context.Context) error {
	for {
		if err := t.runOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("pending subscription lost, reconnecting", "error", err)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tap) runOnce(ctx context.Context) error {
	hashes := make(chan common.Hash, 512)
	client, sub, err := t.pool.SubscribePending(ctx, hashes)
	if err != nil {
		return err
	}
	defer client.Close()
	defer sub.Unsubscribe()

	startedAt := time.Now()
	slog.Info("mempool tap subscribed", "wss", true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case hash := <-hashes:
			metrics.PendingSeen.Inc()
			go t.handle(ctx, hash, startedAt)
		}
	}
}

// handle hydrates and routes one pending hash. Failures drop the hash; a
// single hash never affects a sibling.
func (t *Tap) handle(ctx context.Context, hash common.Hash, startedAt time.Time) {
	tx, isPending, err := t.pool.TransactionByHash(ctx, hash)
	if err != nil {
		slog.Debug("hydrate failed, dropping", "txHash", hash.Hex(), "error", err)
		metrics.PendingDropped.WithLabelValues("hydrate_failed").Inc()
		return
	}
	if tx == nil || !isPending {
		// Already mined by the time we hydrated it.
		metrics.PendingDropped.WithLabelValues("already_mined").Inc()
		return
	}
	if time.Since(startedAt) < startupGrace {
		metrics.PendingDropped.WithLabelValues("startup_backlog").Inc()
		return
	}
	if tx.To() == nil {
		metrics.PendingDropped.WithLabelValues("not_allowlisted").Inc()
		return
	}

	to := config.NormalizeAddress(tx.To().Hex())
	swaps, err := t.route(to, tx)
	if err != nil {
		slog.Debug("decode failed, dropping", "txHash", hash.Hex(), "error", err)
		return
	}
	if len(swaps) == 0 {
		metrics.PendingDropped.WithLabelValues("not_allowlisted").Inc()
		return
	}

	env := t.envelopeBase(tx, to)
	for _, swap := range swaps {
		metrics.SwapsDecoded.WithLabelValues(string(swap.RouterFamily)).Inc()
		e := *env
		e.DecodedTx = swap
		if err := t.producer.Publish(t.cfg.KafkaTransactionsTopic, &e); err != nil {
			slog.Error("publish failed", "txHash", hash.Hex(), "error", err)
		}
	}
}

// route matches tx.to against the three allow-lists and runs the matching
// decoder. The universal decoder may emit several swaps for one call.
func (t *Tap) route(to string, tx *types.Transaction) ([]*decode.DecodedSwap, error) {
	switch {
	case t.cfg.IsUniversalRouter(to):
		return decode.DecodeUniversal(tx)
	case t.cfg.IsV2Router(to):
		swap, err := decode.DecodeV2(tx)
		if err != nil || swap == nil {
			return nil, err
		}
		return []*decode.DecodedSwap{swap}, nil
	case t.cfg.IsV3Router(to):
		swap, err := decode.DecodeV3(tx)
		if err != nil || swap == nil {
			return nil, err
		}
		return []*decode.DecodedSwap{swap}, nil
	default:
		return nil, nil
	}
}

func (t *Tap) envelopeBase(tx *types.Transaction, to string) *bus.Envelope {
	raw := &bus.RawTx{
		Hash:     tx.Hash().Hex(),
		To:       to,
		Value:    tx.Value().String(),
		Data:     "0x" + hex.EncodeToString(tx.Data()),
		GasPrice: tx.GasPrice().String(),
		GasLimit: new(big.Int).SetUint64(tx.Gas()).String(),
	}
	if from, err := types.Sender(t.signer, tx); err == nil {
		raw.From = config.NormalizeAddress(from.Hex())
	}
	return &bus.Envelope{
		TxHash:        tx.Hash().Hex(),
		BlockNumber:   nil, // pending by construction
		RouterAddress: to,
		Timestamp:     time.Now().UnixMilli(),
		RawTx:         raw,
	}
}
