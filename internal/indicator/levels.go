package indicator

import "tradesignal/internal/model"

var (
	supportFactors    = []float64{0.95, 0.92, 0.88}
	resistanceFactors = []float64{1.05, 1.08, 1.12}
)

// Levels returns fixed-percentage support and resistance bands around price,
// nearest first. A non-positive price yields empty levels.
func Levels(price float64) model.Levels {
	if price <= 0 {
		return model.Levels{}
	}
	lv := model.Levels{
		Support:    make([]float64, len(supportFactors)),
		Resistance: make([]float64, len(resistanceFactors)),
	}
	for i, f := range supportFactors {
		lv.Support[i] = price * f
	}
	for i, f := range resistanceFactors {
		lv.Resistance[i] = price * f
	}
	return lv
}
