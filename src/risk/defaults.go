package risk

import (
	"github.com/shopspring/decimal"

	"fxexecutor/src/instrument"
	"fxexecutor/src/model"
)

// ProtectionConfig holds the fractions used to derive missing protective
// levels from a reference price.
type ProtectionConfig struct {
	StopLossFraction   decimal.Decimal
	TakeProfitFraction decimal.Decimal
}

// DefaultProtectionConfig is 0.5% stop-loss and 1% take-profit.
func DefaultProtectionConfig() ProtectionConfig {
	return ProtectionConfig{
		StopLossFraction:   decimal.NewFromFloat(0.005),
		TakeProfitFraction: decimal.NewFromFloat(0.01),
	}
}

var one = decimal.NewFromInt(1)

// DefaultStopLoss derives a stop-loss from the reference mid price:
// BUY -> mid*(1-fraction), SELL -> mid*(1+fraction), normalized to the
// symbol's precision.
func DefaultStopLoss(action, symbol string, mid float64, cfg ProtectionConfig) float64 {
	ref := decimal.NewFromFloat(mid)

	var raw decimal.Decimal
	if action == model.SignalActionBuy {
		raw = ref.Mul(one.Sub(cfg.StopLossFraction))
	} else {
		raw = ref.Mul(one.Add(cfg.StopLossFraction))
	}

	price, _ := raw.Float64()
	return instrument.NormalizePrice(price, symbol)
}

// DefaultTakeProfit derives a take-profit from the reference mid price:
// BUY -> mid*(1+fraction), SELL -> mid*(1-fraction), normalized to the
// symbol's precision.
func DefaultTakeProfit(action, symbol string, mid float64, cfg ProtectionConfig) float64 {
	ref := decimal.NewFromFloat(mid)

	var raw decimal.Decimal
	if action == model.SignalActionBuy {
		raw = ref.Mul(one.Add(cfg.TakeProfitFraction))
	} else {
		raw = ref.Mul(one.Sub(cfg.TakeProfitFraction))
	}

	price, _ := raw.Float64()
	return instrument.NormalizePrice(price, symbol)
}

// ApplyDefaults fills whichever of stopLoss/takeProfit is nil from the
// reference mid price and reports whether anything changed. Fields already
// set are returned untouched, which makes a second application a no-op.
func ApplyDefaults(
	action string,
	symbol string,
	mid float64,
	stopLoss *float64,
	takeProfit *float64,
	cfg ProtectionConfig,
) (*float64, *float64, bool) {

	changed := false

	if stopLoss == nil {
		sl := DefaultStopLoss(action, symbol, mid, cfg)
		stopLoss = &sl
		changed = true
	}
	if takeProfit == nil {
		tp := DefaultTakeProfit(action, symbol, mid, cfg)
		takeProfit = &tp
		changed = true
	}

	return stopLoss, takeProfit, changed
}
