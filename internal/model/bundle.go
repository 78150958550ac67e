package model

// MACDSeries holds the three MACD sub-series, tail-aligned.
type MACDSeries struct {
	MACD      []float64 `json:"macd"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// BollingerSeries holds the band sub-series, tail-aligned.
type BollingerSeries struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// Levels holds support and resistance price levels, nearest first.
type Levels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// IndicatorBundle is the full indicator output for one bar series.
// Every sub-series is aligned to the tail of the input: its last element
// corresponds to the most recent bar. Sub-series may be short or empty when
// the history is shorter than the indicator's window.
type IndicatorBundle struct {
	RSI       []float64       `json:"rsi"`
	MACD      MACDSeries      `json:"macd"`
	SMA20     []float64       `json:"sma20"`
	SMA50     []float64       `json:"sma50"`
	EMA20     []float64       `json:"ema20"`
	EMA50     []float64       `json:"ema50"`
	Bollinger BollingerSeries `json:"bollingerBands"`
	Volume    []float64       `json:"volume"`
	Levels    Levels          `json:"supportResistance"`
}

// LatestValue is the most recent element of a sub-series.
// OK is false when the sub-series is empty.
type LatestValue struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// Snapshot is the most recent value of every bundle sub-series.
type Snapshot struct {
	RSI            LatestValue `json:"rsi"`
	MACD           LatestValue `json:"macd"`
	MACDSignal     LatestValue `json:"macdSignal"`
	MACDHistogram  LatestValue `json:"macdHistogram"`
	SMA20          LatestValue `json:"sma20"`
	SMA50          LatestValue `json:"sma50"`
	EMA20          LatestValue `json:"ema20"`
	EMA50          LatestValue `json:"ema50"`
	BollingerUpper LatestValue `json:"bollingerUpper"`
	BollingerMid   LatestValue `json:"bollingerMiddle"`
	BollingerLower LatestValue `json:"bollingerLower"`
	Volume         LatestValue `json:"volume"`
	AvgVolume      LatestValue `json:"avgVolume"`
	Levels         Levels      `json:"supportResistance"`
}

func latest(xs []float64) LatestValue {
	if len(xs) == 0 {
		return LatestValue{}
	}
	return LatestValue{Value: xs[len(xs)-1], OK: true}
}

// Latest returns the tail value of every sub-series. AvgVolume is the mean of
// the last window volumes (window <= 0 or fewer volumes than window leaves it unset).
func (b *IndicatorBundle) Latest(window int) Snapshot {
	s := Snapshot{
		RSI:            latest(b.RSI),
		MACD:           latest(b.MACD.MACD),
		MACDSignal:     latest(b.MACD.Signal),
		MACDHistogram:  latest(b.MACD.Histogram),
		SMA20:          latest(b.SMA20),
		SMA50:          latest(b.SMA50),
		EMA20:          latest(b.EMA20),
		EMA50:          latest(b.EMA50),
		BollingerUpper: latest(b.Bollinger.Upper),
		BollingerMid:   latest(b.Bollinger.Middle),
		BollingerLower: latest(b.Bollinger.Lower),
		Volume:         latest(b.Volume),
		Levels:         b.Levels,
	}
	if window > 0 && len(b.Volume) >= window {
		sum := 0.0
		for _, v := range b.Volume[len(b.Volume)-window:] {
			sum += v
		}
		s.AvgVolume = LatestValue{Value: sum / float64(window), OK: true}
	}
	return s
}
