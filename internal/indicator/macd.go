package indicator

// MACD returns the MACD line (EMA fast − EMA slow), its signal line (EMA of
// the MACD line) and the histogram (MACD − signal). With first-value EMA
// seeding all three have len(closes) elements.
func MACD(closes []float64, fast, slow, signalPeriod int) (macdLine, signalLine, histogram []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	if len(emaFast) == 0 || len(emaSlow) == 0 {
		return nil, nil, nil
	}

	macdLine = make([]float64, len(emaFast))
	for i := range macdLine {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}

	signalLine = EMA(macdLine, signalPeriod)
	if len(signalLine) == 0 {
		return macdLine, nil, nil
	}

	// Tail-align in case the signal line is ever shorter than the MACD line.
	offset := len(macdLine) - len(signalLine)
	histogram = make([]float64, len(signalLine))
	for i := range histogram {
		histogram[i] = macdLine[i+offset] - signalLine[i]
	}
	return macdLine, signalLine, histogram
}
