package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fxexecutor/src/instrument"
	"fxexecutor/src/model"
)

// Candidate key lists per logical field, tried in priority order. Kept as
// data rather than branching code so the aliasing contract is testable on its
// own.
var (
	symbolKeys     = []string{"symbol", "ticker", "pair"}
	actionKeys     = []string{"action", "side", "order"}
	entryKeys      = []string{"price", "entry", "close"}
	stopLossKeys   = []string{"stop_loss", "sl", "stop"}
	takeProfitKeys = []string{"take_profit", "tp", "target"}
	sizeKeys       = []string{"lot_size", "quantity", "size"}
	confidenceKeys = []string{"confidence", "strength"}
)

// webhook actions fold onto the two directions, options vocabulary included.
var webhookActions = map[string]string{
	"BUY": model.SignalActionBuy, "LONG": model.SignalActionBuy, "CALL": model.SignalActionBuy,
	"SELL": model.SignalActionSell, "SHORT": model.SignalActionSell, "PUT": model.SignalActionSell,
}

// ParseWebhook parses a TradingView-style JSON payload. Symbol and direction
// are mandatory; any numeric field present but non-coercible fails the whole
// parse. Confidence defaults to 100 on the percent scale — deliberately not
// the text parsers' fraction scale; the stored Confidence carries its unit.
func ParseWebhook(payload map[string]interface{}) (*ParsedSignal, error) {
	rawSymbol, ok := firstString(payload, symbolKeys)
	if !ok {
		return nil, ErrNoSymbol
	}
	symbol, ok := instrument.Normalize(strings.ReplaceAll(rawSymbol, "/", "_"))
	if !ok {
		return nil, ErrNoSymbol
	}

	rawAction, ok := firstString(payload, actionKeys)
	if !ok {
		return nil, ErrNoDirection
	}
	action, ok := webhookActions[strings.ToUpper(strings.TrimSpace(rawAction))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDirection, rawAction)
	}

	signal := &ParsedSignal{Symbol: symbol, Action: action}

	var err error
	if signal.EntryPrice, err = firstNumber(payload, entryKeys); err != nil {
		return nil, err
	}
	if signal.StopLoss, err = firstNumber(payload, stopLossKeys); err != nil {
		return nil, err
	}
	if signal.TakeProfit, err = firstNumber(payload, takeProfitKeys); err != nil {
		return nil, err
	}
	if signal.LotSize, err = firstNumber(payload, sizeKeys); err != nil {
		return nil, err
	}

	confidence := model.Confidence{Value: 100, Scale: model.ScalePercent}
	if v, err := firstNumber(payload, confidenceKeys); err != nil {
		return nil, err
	} else if v != nil {
		confidence.Value = *v
	}
	signal.Confidence = &confidence

	return signal, nil
}

func firstString(payload map[string]interface{}, keys []string) (string, bool) {
	for _, key := range keys {
		if raw, ok := payload[key]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

func firstNumber(payload map[string]interface{}, keys []string) (*float64, error) {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}

		switch v := raw.(type) {
		case float64:
			return &v, nil
		case int:
			f := float64(v)
			return &f, nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrBadNumber, key, v)
			}
			return &f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrBadNumber, key, v)
			}
			return &f, nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrBadNumber, key)
		}
	}
	return nil, nil
}
