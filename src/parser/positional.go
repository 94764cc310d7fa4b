package parser

import (
	"regexp"
	"strconv"
	"strings"

	"fxexecutor/src/instrument"
)

var numberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ParsePositional parses manual/pasted signals of the bare form
// "LONG EURUSD 1.1000 1.0950 1.1100": every decimal number in the message is
// taken left to right as entry, stop-loss, take-profit. This is a deliberately
// different contract from ParseLabeled (which price lands in which field
// differs for the same message), so the two stay separate strategies chosen by
// the call site.
func ParsePositional(rawText string) (*ParsedSignal, error) {
	content := strings.ToUpper(strings.TrimSpace(rawText))

	action, err := detectAction(content)
	if err != nil {
		return nil, err
	}

	symbol, ok := instrument.FindInText(content)
	if !ok {
		return nil, ErrNoSymbol
	}

	signal := &ParsedSignal{Symbol: symbol, Action: action}

	numbers := numberPattern.FindAllString(content, -1)
	fields := []**float64{&signal.EntryPrice, &signal.StopLoss, &signal.TakeProfit}
	for i, raw := range numbers {
		if i >= len(fields) {
			break
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		*fields[i] = &v
	}

	return signal, nil
}
