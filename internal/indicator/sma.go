package indicator

// SMA returns the simple moving average of series over period.
// out[j] is the mean of series[j .. j+period-1], so len(out) = len(series)-period+1.
// Each window is summed directly; O(n·period), which keeps windows independent
// of accumulated rounding.
func SMA(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}
	out := make([]float64, len(series)-period+1)
	for i := range out {
		out[i] = mean(series[i : i+period])
	}
	return out
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
