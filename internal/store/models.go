package store

import "time"

// Opportunity statuses.
const (
	StatusPending  = "pending"
	StatusDetected = "detected"
	StatusExpired  = "expired"
)

// Token is one row of the ERC-20 metadata cache, keyed by
// (chain_id, token_address).
type Token struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"tokenAddress"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Pool is one row of the pool cache, keyed by (chain_id, pool_address).
// Exists=false memoizes a confirmed-absent pool so the factory is not asked
// again. Token ordering is whatever the factory returned; token0 < token1
// is not imposed here.
type Pool struct {
	ChainID      int64  `json:"chainId"`
	Address      string `json:"poolAddress"`
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Exists       bool   `json:"exists"`
	RouterFamily string `json:"routerFamily"`
	Fee          string `json:"fee"`
}

// Factory is one row of the router factory cache, keyed by
// (chain_id, router).
type Factory struct {
	ChainID       int64  `json:"chainId"`
	Router        string `json:"router"`
	Factory       string `json:"factoryAddress"`
	WrappedNative string `json:"wrappedNativeAddress"`
	RouterFamily  string `json:"routerFamily"`
}

// Opportunity is a persisted verdict, keyed by (chain_id, tx_hash);
// re-observation of the same transaction upserts in place. Amount fields
// are decimal strings end to end.
type Opportunity struct {
	ID           int64                  `json:"id"`
	ChainID      int64                  `json:"chainId"`
	TxHash       string                 `json:"txHash"`
	Router       string                 `json:"router"`
	RouterFamily string                 `json:"routerFamily"`
	TokenIn      string                 `json:"tokenIn"`
	TokenOut     string                 `json:"tokenOut"`
	AmountIn     string                 `json:"amountIn"`
	AmountOutMin string                 `json:"amountOutMin"`
	AmountInMax  string                 `json:"amountInMax"`
	Fee          string                 `json:"fee"`
	PoolAddress  string                 `json:"poolAddress"`
	Method       string                 `json:"method"`
	Recipient    string                 `json:"recipient"`
	Deadline     string                 `json:"deadline"`
	BlockNumber  int64                  `json:"blockNumber"`
	Status       string                 `json:"status"`
	DetectedAt   time.Time              `json:"detectedAt"`
	ProcessedAt  time.Time              `json:"processedAt"`
	Metadata     map[string]interface{} `json:"metadata"`
}
