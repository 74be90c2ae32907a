package ledger

import "github.com/shopspring/decimal"

// CalculateReward maps (amount, rate) to the reward earned by a single stake
// call: amount * rateBps / 10000, fractional part truncated. Pure function,
// no state.
func CalculateReward(amount decimal.Decimal, rateBps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(rateBps)).Shift(-4).Floor()
}
