// Package rpcpool provides a load-balanced JSON-RPC client pool.
//
// Each call picks a random HTTP endpoint, dials a fresh ethclient (cheap,
// stateless, no shared-client contention) and runs under a hard per-call
// timeout. Timeout-class failures are retried with exponential backoff;
// anything else fails fast.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/swapscan/backend/internal/metrics"
)

const (
	// CallTimeout bounds a single JSON-RPC round trip.
	CallTimeout = 10 * time.Second

	maxAttempts = 3
	backoffBase = 500 * time.Millisecond
)

// Pool selects among configured HTTP endpoints and owns the WSS endpoint
// used for the pending-transaction subscription.
type Pool struct {
	httpURLs []string
	wssURL   string
}

// New builds a pool over the given HTTP endpoints and one WSS endpoint.
func New(httpURLs []string, wssURL string) (*Pool, error) {
	if len(httpURLs) == 0 {
		return nil, errors.New("rpcpool: no HTTP endpoints configured")
	}
	return &Pool{httpURLs: httpURLs, wssURL: wssURL}, nil
}

// pick returns a uniformly sampled HTTP endpoint.
func (p *Pool) pick() string {
	return p.httpURLs[rand.Intn(len(p.httpURLs))]
}

// do runs fn against a fresh client with the retry policy. The op name is
// only used for logging and metrics.
func (p *Pool) do(ctx context.Context, op string, fn func(ctx context.Context, ec *ethclient.Client) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		err := func() error {
			url := p.pick()
			ec, err := ethclient.DialContext(callCtx, url)
			if err != nil {
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer ec.Close()
			return fn(callCtx, ec)
		}()
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
		if !isTimeoutClass(err) || attempt == maxAttempts {
			break
		}
		backoff := backoffBase << (attempt - 1)
		slog.Warn("rpc call timed out, retrying", "op", op, "attempt", attempt, "backoff", backoff, "error", err)
		metrics.RPCRetries.WithLabelValues(op).Inc()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("rpcpool: %s: %w", op, lastErr)
}

// isTimeoutClass classifies errors that are worth retrying: deadline
// exhaustion, net timeouts, and reset/refused connections.
func isTimeoutClass(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout")
}

// TransactionByHash hydrates a transaction. isPending mirrors the node's
// view; a mined transaction also carries a receipt-side block number which
// callers fetch separately when they need it.
func (p *Pool) TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error) {
	err = p.do(ctx, "eth_getTransactionByHash", func(ctx context.Context, ec *ethclient.Client) error {
		var inner error
		tx, isPending, inner = ec.TransactionByHash(ctx, hash)
		return inner
	})
	return tx, isPending, err
}

// BlockNumber returns the current head block number.
func (p *Pool) BlockNumber(ctx context.Context) (n uint64, err error) {
	err = p.do(ctx, "eth_blockNumber", func(ctx context.Context, ec *ethclient.Client) error {
		var inner error
		n, inner = ec.BlockNumber(ctx)
		return inner
	})
	return n, err
}

// CallContract performs an eth_call against latest state.
func (p *Pool) CallContract(ctx context.Context, msg ethereum.CallMsg) (out []byte, err error) {
	err = p.do(ctx, "eth_call", func(ctx context.Context, ec *ethclient.Client) error {
		var inner error
		out, inner = ec.CallContract(ctx, msg, nil)
		return inner
	})
	return out, err
}

// CallContractAt performs an eth_call against a specific block.
func (p *Pool) CallContractAt(ctx context.Context, msg ethereum.CallMsg, block *big.Int) (out []byte, err error) {
	err = p.do(ctx, "eth_call", func(ctx context.Context, ec *ethclient.Client) error {
		var inner error
		out, inner = ec.CallContract(ctx, msg, block)
		return inner
	})
	return out, err
}

// SubscribePending opens the WSS connection and subscribes to
// newPendingTransactions. The returned rpc.Client must be closed by the
// caller on shutdown; closing it terminates the subscription.
func (p *Pool) SubscribePending(ctx context.Context, ch chan<- common.Hash) (*rpc.Client, ethereum.Subscription, error) {
	if p.wssURL == "" {
		return nil, nil, errors.New("rpcpool: no WSS endpoint configured")
	}
	client, err := rpc.DialContext(ctx, p.wssURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial wss %s: %w", p.wssURL, err)
	}
	sub, err := client.EthSubscribe(ctx, ch, "newPendingTransactions")
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("subscribe newPendingTransactions: %w", err)
	}
	return client, sub, nil
}
