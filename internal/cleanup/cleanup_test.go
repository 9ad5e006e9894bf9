package cleanup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineTimestamp(t *testing.T) {
	// JSON decoding produces float64; direct construction may carry ints.
	cases := []struct {
		name string
		meta map[string]interface{}
		want int64
		ok   bool
	}{
		{"float64", map[string]interface{}{"deadlineTimestamp": float64(1700000000)}, 1700000000, true},
		{"int64", map[string]interface{}{"deadlineTimestamp": int64(42)}, 42, true},
		{"int", map[string]interface{}{"deadlineTimestamp": 7}, 7, true},
		{"absent", map[string]interface{}{}, 0, false},
		{"string", map[string]interface{}{"deadlineTimestamp": "1700000000"}, 0, false},
		{"nil value", map[string]interface{}{"deadlineTimestamp": nil}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := deadlineTimestamp(tc.meta)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
