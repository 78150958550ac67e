package model

// Quote is a single live snapshot for one symbol. It may lag or lead the bar series.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Timestamp     int64   `json:"timestamp"` // ms since epoch
}

// NewQuote builds a quote and derives change and changePercent from previousClose.
// A zero previousClose leaves changePercent at 0.
func NewQuote(symbol string, price, previousClose, open, high, low, volume float64, ts int64) Quote {
	q := Quote{
		Symbol:        symbol,
		Price:         price,
		Volume:        volume,
		High:          high,
		Low:           low,
		Open:          open,
		PreviousClose: previousClose,
		Timestamp:     ts,
	}
	q.Change = price - previousClose
	if previousClose != 0 {
		q.ChangePercent = q.Change / previousClose * 100
	}
	return q
}

// QuoteFromSeries derives a quote from the last bar of s. The prior bar's close
// is used as previousClose; with a single bar the bar's open is used instead.
func QuoteFromSeries(symbol string, s Series) (Quote, bool) {
	last, ok := s.Last()
	if !ok {
		return Quote{}, false
	}
	prev := last.Open
	if len(s) > 1 {
		prev = s[len(s)-2].Close
	}
	return NewQuote(symbol, last.Close, prev, last.Open, last.High, last.Low, last.Volume, last.TS), true
}
