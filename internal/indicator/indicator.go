// Package indicator provides technical indicator calculations over price series.
//
// Every function here is pure: it reads its input slice and returns a freshly
// allocated output slice with no shared state, so calls are safe from any
// goroutine. Outputs are aligned to the tail of the input. Too-short input or a
// non-positive period yields an empty (nil) result rather than an error.
package indicator

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when indicator periods or widths are unusable.
var ErrInvalidConfig = errors.New("invalid indicator config")

// Config holds the indicator periods used by the Aggregator.
type Config struct {
	RSIPeriod       int     `yaml:"rsi_period" json:"rsiPeriod"`
	SMAShort        int     `yaml:"sma_short" json:"smaShort"`
	SMALong         int     `yaml:"sma_long" json:"smaLong"`
	EMAShort        int     `yaml:"ema_short" json:"emaShort"`
	EMALong         int     `yaml:"ema_long" json:"emaLong"`
	MACDFast        int     `yaml:"macd_fast" json:"macdFast"`
	MACDSlow        int     `yaml:"macd_slow" json:"macdSlow"`
	MACDSignal      int     `yaml:"macd_signal" json:"macdSignal"`
	BollingerPeriod int     `yaml:"bollinger_period" json:"bollingerPeriod"`
	BollingerWidth  float64 `yaml:"bollinger_width" json:"bollingerWidth"`
}

// DefaultConfig returns the standard periods: RSI 14, SMA/EMA 20 and 50,
// MACD 12/26/9, Bollinger 20 with width 2.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		SMAShort:        20,
		SMALong:         50,
		EMAShort:        20,
		EMALong:         50,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerWidth:  2,
	}
}

// Validate checks that every period is positive, MACD fast < slow and the
// Bollinger width is non-negative.
func (c Config) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"rsi_period", c.RSIPeriod},
		{"sma_short", c.SMAShort},
		{"sma_long", c.SMALong},
		{"ema_short", c.EMAShort},
		{"ema_long", c.EMALong},
		{"macd_fast", c.MACDFast},
		{"macd_slow", c.MACDSlow},
		{"macd_signal", c.MACDSignal},
		{"bollinger_period", c.BollingerPeriod},
	}
	for _, p := range periods {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("%w: macd_fast (%d) must be below macd_slow (%d)", ErrInvalidConfig, c.MACDFast, c.MACDSlow)
	}
	if c.BollingerWidth < 0 {
		return fmt.Errorf("%w: bollinger_width must be non-negative, got %g", ErrInvalidConfig, c.BollingerWidth)
	}
	return nil
}

// LongestPeriod returns the largest window any indicator needs before its
// output is fully populated.
func (c Config) LongestPeriod() int {
	longest := c.RSIPeriod + 1
	for _, p := range []int{c.SMAShort, c.SMALong, c.EMAShort, c.EMALong, c.MACDSlow, c.BollingerPeriod} {
		if p > longest {
			longest = p
		}
	}
	return longest
}
