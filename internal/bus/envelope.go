// Package bus is the Kafka boundary between the mempool tap and the
// detector. The transactions topic is the durability line: everything
// upstream of it is lossy by design, everything downstream replays from it.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/swapscan/backend/internal/decode"
)

// RawTx carries the subset of the original transaction worth keeping next
// to the decoded form. All numeric fields are decimal strings.
type RawTx struct {
	Hash     string `json:"hash"`
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	GasPrice string `json:"gasPrice"`
	GasLimit string `json:"gasLimit"`
}

// Envelope is the JSON message on the transactions topic, keyed by TxHash.
// BlockNumber is null for pending transactions; a non-null value means the
// transaction mined before we got to it and the consumer drops it.
type Envelope struct {
	TxHash        string              `json:"txHash"`
	BlockNumber   *uint64             `json:"blockNumber"`
	DecodedTx     *decode.DecodedSwap `json:"decodedTx"`
	RouterAddress string              `json:"routerAddress"`
	Timestamp     int64               `json:"timestamp"` // unix milliseconds, producer clock
	RawTx         *RawTx              `json:"rawTx,omitempty"`
}

// Age returns how long ago the envelope was produced, preferring the
// envelope's own timestamp and falling back to the broker's.
func (e *Envelope) Age(now time.Time, brokerTime time.Time) time.Duration {
	if e.Timestamp > 0 {
		return now.Sub(time.UnixMilli(e.Timestamp))
	}
	if !brokerTime.IsZero() {
		return now.Sub(brokerTime)
	}
	return 0
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.TxHash, err)
	}
	return data, nil
}

// UnmarshalEnvelope decodes a message payload.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if e.TxHash == "" || e.DecodedTx == nil {
		return nil, fmt.Errorf("envelope missing txHash or decodedTx")
	}
	return &e, nil
}
