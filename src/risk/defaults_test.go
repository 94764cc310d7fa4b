package risk

import (
	"testing"

	"fxexecutor/src/model"
)

func TestDefaultProtectionLevels(t *testing.T) {
	cfg := DefaultProtectionConfig()

	tests := []struct {
		name   string
		action string
		symbol string
		mid    float64
		wantSL float64
		wantTP float64
	}{
		{
			name:   "buy at 1.1000",
			action: model.SignalActionBuy,
			symbol: "EUR_USD",
			mid:    1.1000,
			wantSL: 1.0945, // 1.1000 * 0.995
			wantTP: 1.1110, // 1.1000 * 1.01
		},
		{
			name:   "sell mirrors buy",
			action: model.SignalActionSell,
			symbol: "EUR_USD",
			mid:    1.1000,
			wantSL: 1.1055,
			wantTP: 1.0890,
		},
		{
			name:   "yen pair precision",
			action: model.SignalActionBuy,
			symbol: "USD_JPY",
			mid:    151.204,
			wantSL: 150.448, // 151.204 * 0.995 = 150.44798
			wantTP: 152.716, // 151.204 * 1.01 = 152.71604
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultStopLoss(tt.action, tt.symbol, tt.mid, cfg); got != tt.wantSL {
				t.Fatalf("stop loss = %v, want %v", got, tt.wantSL)
			}
			if got := DefaultTakeProfit(tt.action, tt.symbol, tt.mid, cfg); got != tt.wantTP {
				t.Fatalf("take profit = %v, want %v", got, tt.wantTP)
			}
		})
	}
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	cfg := DefaultProtectionConfig()

	sl, tp, changed := ApplyDefaults(model.SignalActionBuy, "EUR_USD", 1.1000, nil, nil, cfg)
	if !changed {
		t.Fatal("first application should fill both fields")
	}
	if *sl != 1.0945 || *tp != 1.1110 {
		t.Fatalf("unexpected defaults: sl=%v tp=%v", *sl, *tp)
	}

	sl2, tp2, changed := ApplyDefaults(model.SignalActionBuy, "EUR_USD", 1.2345, sl, tp, cfg)
	if changed {
		t.Fatal("second application must be a no-op")
	}
	if sl2 != sl || tp2 != tp {
		t.Fatal("second application must return the existing values untouched")
	}
}

func TestApplyDefaultsPartial(t *testing.T) {
	cfg := DefaultProtectionConfig()
	existing := 1.0950

	sl, tp, changed := ApplyDefaults(model.SignalActionBuy, "EUR_USD", 1.1000, &existing, nil, cfg)
	if !changed {
		t.Fatal("missing take-profit should be filled")
	}
	if *sl != 1.0950 {
		t.Fatalf("existing stop loss must be preserved, got %v", *sl)
	}
	if *tp != 1.1110 {
		t.Fatalf("take profit = %v, want 1.1110", *tp)
	}
}
