package indicator

// RSI returns the Relative Strength Index of closes over period using simple
// (non-smoothed) averages of gains and losses in each window.
//
// There are len(closes)-1 deltas and one value per window of period deltas, so
// len(out) = len(closes)-period. A window whose average loss is exactly zero
// yields 100, including the flat case where the average gain is zero too.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	n := len(closes) - 1
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else if delta < 0 {
			losses[i-1] = -delta
		}
	}

	out := make([]float64, n-period+1)
	for i := range out {
		// Summed per window: a running sum can leave a tiny negative residue
		// where the true loss is zero.
		avgGain := mean(gains[i : i+period])
		avgLoss := mean(losses[i : i+period])
		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - (100.0 / (1.0 + rs))
	}
	return out
}
