package indicator

import "math"

// BollingerBands returns upper, middle and lower bands over period.
// middle is SMA(closes, period); each band sits width population standard
// deviations (divide by period) away from it. All three share SMA's length.
func BollingerBands(closes []float64, period int, width float64) (upper, middle, lower []float64) {
	middle = SMA(closes, period)
	if len(middle) == 0 {
		return nil, nil, nil
	}
	upper = make([]float64, len(middle))
	lower = make([]float64, len(middle))
	for i, m := range middle {
		variance := 0.0
		for _, v := range closes[i : i+period] {
			d := v - m
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = m + width*sd
		lower[i] = m - width*sd
	}
	return upper, middle, lower
}
