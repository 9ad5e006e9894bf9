package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapscan/backend/internal/decode"
	"github.com/swapscan/backend/internal/detect"
)

func TestBuildMetadata(t *testing.T) {
	swap := &decode.DecodedSwap{
		Method:       "exactInputSingle",
		RouterFamily: decode.FamilyV3,
		TokenIn:      "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		TokenOut:     "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		AmountIn:     "1000000",
	}
	verdict := &detect.Verdict{
		IsOpportunity:           true,
		Reason:                  detect.ReasonDetected,
		PriceImpact:             0.0123,
		ExpectedProfit:          "5000",
		ExpectedProfitFormatted: "0.005",
		AmountOut:               "998000",
		DecimalsIn:              6,
		DecimalsOut:             18,
		TimeToSubmitSeconds:     90,
		DeadlineTimestamp:       1_700_000_090,
	}

	meta := buildMetadata(swap, verdict)
	assert.Equal(t, detect.ReasonDetected, meta["reason"])
	assert.Equal(t, 0.0123, meta["priceImpact"])
	assert.Equal(t, "5000", meta["expectedProfit"])
	assert.Equal(t, int64(1_700_000_090), meta["deadlineTimestamp"])
	assert.Equal(t, false, meta["isExpired"])
	assert.Same(t, swap, meta["decodedTx"])

	// The bag must survive a JSON round trip for the JSONB column.
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "exactInputSingle", back["decodedTx"].(map[string]interface{})["method"])
}
