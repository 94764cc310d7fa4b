package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"fxexecutor/src/instrument"
	"fxexecutor/src/model"
)

var (
	// ErrNoDirection means no BUY/SELL keyword family matched.
	ErrNoDirection = errors.New("parser: no direction keyword found")
	// ErrNoSymbol means no catalogue instrument appeared in the message.
	ErrNoSymbol = errors.New("parser: no recognized symbol found")
	// ErrBadNumber means a numeric field was present but not coercible.
	ErrBadNumber = errors.New("parser: invalid numeric field")
)

// ParsedSignal is the structured result of any parsing strategy, before
// persistence defaults (lot size, protection levels) are applied.
type ParsedSignal struct {
	Symbol     string
	Action     string
	EntryPrice *float64
	StopLoss   *float64
	TakeProfit *float64
	LotSize    *float64
	Confidence *model.Confidence
}

var (
	buyPattern  = regexp.MustCompile(`\b(?:BUY|LONG|BUYING)\b`)
	sellPattern = regexp.MustCompile(`\b(?:SELL|SHORT|SELLING)\b`)

	entryPattern = regexp.MustCompile(`(?:@|\bAT\b)\s*([0-9]+(?:\.[0-9]+)?)`)
	slPattern    = regexp.MustCompile(`(?:SL|STOP\s*LOSS|STOP)\s*:?\s*([0-9]+(?:\.[0-9]+)?)`)
	tpPattern    = regexp.MustCompile(`(?:TP|TAKE\s*PROFIT|TARGET)\s*:?\s*([0-9]+(?:\.[0-9]+)?)`)
	lotPattern   = regexp.MustCompile(`(?:LOT|SIZE|UNITS)\s*:?\s*([0-9]+(?:\.[0-9]+)?)`)
	confPattern  = regexp.MustCompile(`(?:CONFIDENCE|CONF)\s*:?\s*([0-9]+(?:\.[0-9]+)?)%?`)
)

// ParseLabeled parses a chat message using labeled field patterns
// (SL:/TP:/LOT:/CONFIDENCE:). A recognized direction keyword plus one
// catalogue symbol is the minimal viable parse; every price field is optional.
// When both direction families appear in one message, BUY wins (pinned by
// test, see ParseLabeled tests).
func ParseLabeled(rawText string) (*ParsedSignal, error) {
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

	if m := entryPattern.FindStringSubmatch(content); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		signal.EntryPrice = &v
	}
	if m := slPattern.FindStringSubmatch(content); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		signal.StopLoss = &v
	}
	if m := tpPattern.FindStringSubmatch(content); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		signal.TakeProfit = &v
	}
	if m := lotPattern.FindStringSubmatch(content); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		signal.LotSize = &v
	}
	if m := confPattern.FindStringSubmatch(content); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, ErrBadNumber
		}
		signal.Confidence = &model.Confidence{Value: v / 100, Scale: model.ScaleFraction}
	}

	return signal, nil
}

func detectAction(content string) (string, error) {
	if buyPattern.MatchString(content) {
		return model.SignalActionBuy, nil
	}
	if sellPattern.MatchString(content) {
		return model.SignalActionSell, nil
	}
	return "", ErrNoDirection
}
