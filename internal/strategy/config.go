package strategy

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when synthesizer thresholds or weights are unusable.
var ErrInvalidConfig = errors.New("invalid strategy config")

// DefaultFallbackReason is the reason text used when no rule fires.
const DefaultFallbackReason = "Technical analysis based on multiple indicators."

// Config holds rule thresholds, confidence weights and target/stop multipliers.
type Config struct {
	RSIOversold   float64 `yaml:"rsi_oversold" json:"rsiOversold"`
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsiOverbought"`

	RSIWeight    int `yaml:"rsi_weight" json:"rsiWeight"`
	MACDWeight   int `yaml:"macd_weight" json:"macdWeight"`
	MAWeight     int `yaml:"ma_weight" json:"maWeight"`
	VolumeWeight int `yaml:"volume_weight" json:"volumeWeight"` // 0 disables volume confirmation

	// VolumeFactor is the multiple of average volume that counts as a high-volume bar.
	VolumeFactor float64 `yaml:"volume_factor" json:"volumeFactor"`

	TargetFloor         float64 `yaml:"target_floor" json:"targetFloor"`
	TargetVolMultiplier float64 `yaml:"target_vol_multiplier" json:"targetVolMultiplier"`
	StopFloor           float64 `yaml:"stop_floor" json:"stopFloor"`
	StopVolMultiplier   float64 `yaml:"stop_vol_multiplier" json:"stopVolMultiplier"`

	FallbackReason string `yaml:"fallback_reason" json:"fallbackReason"`
}

// DefaultConfig returns RSI 30/70, weights 35/25/20, volume factor 1.2,
// target max(2%, 1.5×vol) and stop max(1.5%, vol). The volume rule is off
// (weight 0) unless volume_weight is set.
func DefaultConfig() Config {
	return Config{
		RSIOversold:         30,
		RSIOverbought:       70,
		RSIWeight:           35,
		MACDWeight:          25,
		MAWeight:            20,
		VolumeWeight:        0,
		VolumeFactor:        1.2,
		TargetFloor:         0.02,
		TargetVolMultiplier: 1.5,
		StopFloor:           0.015,
		StopVolMultiplier:   1.0,
		FallbackReason:      DefaultFallbackReason,
	}
}

// Validate checks threshold ordering and that weights and multipliers are non-negative.
func (c Config) Validate() error {
	if c.RSIOversold < 0 || c.RSIOverbought > 100 || c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("%w: need 0 <= rsi_oversold (%g) < rsi_overbought (%g) <= 100",
			ErrInvalidConfig, c.RSIOversold, c.RSIOverbought)
	}
	if c.RSIWeight < 0 || c.MACDWeight < 0 || c.MAWeight < 0 || c.VolumeWeight < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}
	if c.VolumeFactor <= 0 {
		return fmt.Errorf("%w: volume_factor must be positive, got %g", ErrInvalidConfig, c.VolumeFactor)
	}
	if c.TargetFloor < 0 || c.TargetVolMultiplier < 0 || c.StopFloor < 0 || c.StopVolMultiplier < 0 {
		return fmt.Errorf("%w: target/stop multipliers must be non-negative", ErrInvalidConfig)
	}
	return nil
}
