package swap

import "github.com/btcsuite/btcd/btcutil"

// FeeRateTotalParts defines the granularity of a fee rate expressed as
// parts-per-million, used identically on both the native and foreign fee
// legs so a single formula covers both chains' base-unit amounts.
const FeeRateTotalParts = 1e6

// CalcFee returns the total fee for a swap of the given amount: a fixed
// base plus a proportional part-per-million rate.
func CalcFee(amount, feeBase btcutil.Amount, feeRate int64) btcutil.Amount {
	return feeBase + amount*btcutil.Amount(feeRate)/
		btcutil.Amount(FeeRateTotalParts)
}

// FeeRateAsPercentage converts a parts-per-million fee rate to a percentage,
// used only for logging/status display.
func FeeRateAsPercentage(feeRate int64) float64 {
	return float64(feeRate) / (FeeRateTotalParts / 100)
}
