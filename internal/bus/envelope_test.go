package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapscan/backend/internal/decode"
)

func sampleEnvelope() *Envelope {
	return &Envelope{
		TxHash: "0xabc123",
		DecodedTx: &decode.DecodedSwap{
			Router:       "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			Method:       "swapExactTokensForTokens",
			RouterFamily: decode.FamilyV2,
			TokenIn:      "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			TokenOut:     "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			AmountIn:     "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			AmountOutMin: "1",
		},
		RouterAddress: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
		Timestamp:     time.Now().UnixMilli(),
		RawTx: &RawTx{
			Hash:  "0xabc123",
			To:    "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			Value: "0",
		},
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := sampleEnvelope()
	data, err := env.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.TxHash, got.TxHash)
	assert.Nil(t, got.BlockNumber)
	// 2^256-1 survives as a string, no float truncation.
	assert.Equal(t, env.DecodedTx.AmountIn, got.DecodedTx.AmountIn)
	assert.Equal(t, env.DecodedTx.Method, got.DecodedTx.Method)
}

func TestUnmarshalEnvelopeRejectsIncomplete(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte(`{"txHash":"0x1"}`))
	assert.Error(t, err)

	_, err = UnmarshalEnvelope([]byte(`{"decodedTx":{"method":"x"}}`))
	assert.Error(t, err)

	_, err = UnmarshalEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestEnvelopeAgePrefersOwnTimestamp(t *testing.T) {
	now := time.Now()
	env := &Envelope{Timestamp: now.Add(-2 * time.Minute).UnixMilli()}
	brokerTime := now.Add(-30 * time.Minute)

	age := env.Age(now, brokerTime)
	assert.InDelta(t, 2*time.Minute, age, float64(time.Second))
}

func TestEnvelopeAgeBrokerFallback(t *testing.T) {
	now := time.Now()
	env := &Envelope{}
	age := env.Age(now, now.Add(-5*time.Minute))
	assert.InDelta(t, 5*time.Minute, age, float64(time.Second))

	assert.Zero(t, env.Age(now, time.Time{}))
}
