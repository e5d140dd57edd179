package llm

import (
	"log/slog"
	"math"
	"strconv"

	"podscript/internal/logging"
)

const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 0.7
)

// ValidateTemperature clamps t into [MinTemperature, MaxTemperature]. Out of
// range values are logged; NaN falls back to DefaultTemperature.
func ValidateTemperature(logger *slog.Logger, t float64) float64 {
	var clamped float64
	switch {
	case math.IsNaN(t):
		clamped = DefaultTemperature
	case t < MinTemperature:
		clamped = MinTemperature
	case t > MaxTemperature:
		clamped = MaxTemperature
	default:
		return t
	}
	logging.WarnWithContext(logger, "temperature out of range; clamped", "temperature_clamped",
		logging.String("requested", strconv.FormatFloat(t, 'g', -1, 64)),
		logging.Float64("temperature", clamped),
		logging.String(logging.FieldErrorHint, "use a temperature between 0 and 2"),
		logging.String(logging.FieldImpact, "model sampling uses the clamped value"),
	)
	return clamped
}
