package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptySeries is returned when a bar series has no bars at all.
	ErrEmptySeries = errors.New("empty bar series")

	// ErrInvalidSeries is returned when a bar series breaks the input contract.
	ErrInvalidSeries = errors.New("invalid bar series")
)

// Bar is one OHLCV sample for a fixed interval.
// TS is milliseconds since the Unix epoch.
type Bar struct {
	TS     int64   `json:"time" db:"ts"`
	Open   float64 `json:"open" db:"open"`
	High   float64 `json:"high" db:"high"`
	Low    float64 `json:"low" db:"low"`
	Close  float64 `json:"close" db:"close"`
	Volume float64 `json:"volume" db:"volume"`
}

// Series is an ordered bar sequence, oldest first.
// A Series is treated as immutable once produced; a new fetch replaces it.
type Series []Bar

// Closes returns the close sub-sequence.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume sub-sequence.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Last returns the most recent bar and false if the series is empty.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Validate checks prices > 0, volume >= 0 and strictly increasing timestamps.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: bar %d has non-positive price", ErrInvalidSeries, i)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d has negative volume", ErrInvalidSeries, i)
		}
		if i > 0 && b.TS <= s[i-1].TS {
			return fmt.Errorf("%w: bar %d timestamp %d not after %d", ErrInvalidSeries, i, b.TS, s[i-1].TS)
		}
	}
	return nil
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
