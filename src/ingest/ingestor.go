package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fxexecutor/src/model"
	"fxexecutor/src/parser"
)

// SignalStore is the slice of the signal repository the ingestor needs.
type SignalStore interface {
	Create(ctx context.Context, signal *model.Signal) error
	FindBySourceID(ctx context.Context, sourceID string) (*model.Signal, error)
}

// Ingestor turns raw text messages and webhook payloads into persisted
// signals. Parsing strategy follows the origin: chat messages use labeled
// fields, manual entries use positional numbers, webhooks use the JSON
// contract. Every entry point is idempotent on the source id.
type Ingestor struct {
	signals        SignalStore
	defaultLotSize float64
	now            func() time.Time
}

func NewIngestor(signals SignalStore) *Ingestor {
	config := GetConfig()
	return &Ingestor{
		signals:        signals,
		defaultLotSize: config.DefaultLotSize,
		now:            time.Now,
	}
}

// WithNow overrides the clock. Useful for tests.
func (i *Ingestor) WithNow(now func() time.Time) *Ingestor {
	clone := *i
	clone.now = now
	return &clone
}

// OnRawMessage ingests a chat or manual text message. An empty sourceID gets
// a generated one, which disables dedup for that message.
func (i *Ingestor) OnRawMessage(ctx context.Context, sourceID, text, origin string) (*model.Signal, error) {
	if sourceID == "" {
		sourceID = uuid.NewString()
	}

	if existing, err := i.signals.FindBySourceID(ctx, sourceID); err != nil {
		return nil, err
	} else if existing != nil {
		logger.WithFields(map[string]interface{}{
			"component": "ingestor",
			"source_id": sourceID,
		}).Debug("Duplicate message ignored")
		return existing, nil
	}

	var parsed *parser.ParsedSignal
	var err error
	if origin == model.SignalOriginManual {
		parsed, err = parser.ParsePositional(text)
	} else {
		parsed, err = parser.ParseLabeled(text)
	}
	if err != nil {
		return nil, err
	}

	return i.persist(ctx, sourceID, text, origin, parsed)
}

// OnWebhookPayload ingests a TradingView-style JSON payload. The payload's
// own "id" field, when present, is the dedup key.
func (i *Ingestor) OnWebhookPayload(ctx context.Context, payload map[string]interface{}, rawBody string) (*model.Signal, error) {
	sourceID := uuid.NewString()
	if raw, ok := payload["id"].(string); ok && raw != "" {
		sourceID = raw
	}

	if existing, err := i.signals.FindBySourceID(ctx, sourceID); err != nil {
		return nil, err
	} else if existing != nil {
		logger.WithFields(map[string]interface{}{
			"component": "ingestor",
			"source_id": sourceID,
		}).Debug("Duplicate webhook ignored")
		return existing, nil
	}

	parsed, err := parser.ParseWebhook(payload)
	if err != nil {
		return nil, err
	}

	return i.persist(ctx, sourceID, rawBody, model.SignalOriginTradingView, parsed)
}

func (i *Ingestor) persist(ctx context.Context, sourceID, raw, origin string, parsed *parser.ParsedSignal) (*model.Signal, error) {
	lotSize := i.defaultLotSize
	if parsed.LotSize != nil {
		lotSize = *parsed.LotSize
	}

	signal := &model.Signal{
		SourceID:   sourceID,
		Symbol:     parsed.Symbol,
		Action:     parsed.Action,
		EntryPrice: parsed.EntryPrice,
		StopLoss:   parsed.StopLoss,
		TakeProfit: parsed.TakeProfit,
		LotSize:    lotSize,
		Origin:     origin,
		RawMessage: raw,
		ReceivedAt: i.now().UTC(),
		Status:     model.SignalStatusPending,
	}
	if parsed.Confidence != nil {
		fraction := parsed.Confidence.Fraction()
		signal.Confidence = &fraction
	}

	if err := i.signals.Create(ctx, signal); err != nil {
		// A concurrent delivery of the same message can slip past the
		// read above; the unique index settles the race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return i.signals.FindBySourceID(ctx, sourceID)
		}
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"component": "ingestor",
		"source_id": sourceID,
		"symbol":    signal.Symbol,
		"action":    signal.Action,
		"origin":    origin,
	}).Info("Signal ingested")

	return signal, nil
}
