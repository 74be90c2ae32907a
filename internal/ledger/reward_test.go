package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCalculateRewardTruncates(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		rateBps int64
		want    string
	}{
		{"exact", "1000", 500, "50"},
		{"fraction dropped", "999", 500, "49"}, // 49.95
		{"sub-unit reward", "1", 500, "0"},     // 0.05
		{"one bps", "10000", 1, "1"},
		{"just under one", "33", 300, "0"}, // 0.99
		{"zero rate", "1000", 0, "0"},
		{"large stake", "1000000000", 1500, "150000000"},
		{"fractional amount", "100.5", 1000, "10"}, // 10.05
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			want := decimal.RequireFromString(tc.want)
			got := CalculateReward(amount, tc.rateBps)
			require.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}
