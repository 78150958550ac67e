package indicator

// EMA returns the exponential moving average of series with k = 2/(period+1).
//
// The first output is seeded with series[0] (not an SMA seed), so len(out) =
// len(series) and the early values lean toward the first price. Callers that
// need a settled EMA should discard a warm-up prefix.
func EMA(series []float64, period int) []float64 {
	if period <= 0 || len(series) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		// EMA = (Price * k) + (EMA_prev * (1 - k))
		out[i] = series[i]*k + out[i-1]*(1-k)
	}
	return out
}
