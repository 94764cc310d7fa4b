package connectors

// REST API CLIENT FOR OANDA v20 (forex)
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"fxexecutor/src/instrument"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// Price is a two-sided quote for one instrument.
type Price struct {
	Symbol string
	Bid    float64
	Ask    float64
	Mid    float64
	Time   time.Time
}

// OrderFill is the broker's confirmation of a filled market order.
type OrderFill struct {
	TradeID   string
	FillPrice float64
	Units     int
}

// CloseResult reports the outcome of closing a trade.
type CloseResult struct {
	ClosePrice  float64
	RealizedPnl float64
}

// AccountSummary is the broker-side account state.
type AccountSummary struct {
	AccountID       string
	Balance         float64
	UnrealizedPnl   float64
	RealizedPnl     float64
	MarginUsed      float64
	MarginAvailable float64
	Currency        string
}

// BrokerTrade is an open trade as the broker sees it.
type BrokerTrade struct {
	TradeID       string
	Symbol        string
	Units         int
	EntryPrice    float64
	UnrealizedPnl float64
	StopLoss      *float64
	TakeProfit    *float64
	OpenedAt      time.Time
}

// BrokerPosition is the net exposure per instrument at the broker.
type BrokerPosition struct {
	Symbol        string
	LongUnits     int
	ShortUnits    int
	LongAvgPrice  *float64
	ShortAvgPrice *float64
	UnrealizedPnl float64
	MarginUsed    float64
}

// RejectionError is a broker "no": the order was understood and refused,
// as opposed to a transport failure. The refusal reason may clear up over
// time (margin freed, market reopened).
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected by broker: %s", e.Reason)
}

// -----------------------------
// CLIENT
// -----------------------------
type OandaClient struct {
	accountID string
	http      *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewOandaClient(apiKey, accountID, baseURL string) *OandaClient {
	retryCount := defaultRetryAttempts - 1

	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api-fxpractice.oanda.com"
		logger.Warnf("No base URL provided, using practice default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &OandaClient{
		accountID: accountID,
		http:      httpClient,
	}
}

// NewOandaClientFromConfig builds a client from environment configuration.
func NewOandaClientFromConfig() *OandaClient {
	config := GetConfig()
	return NewOandaClient(config.OandaAPIKey, config.OandaAccountID, config.BaseURL())
}

// -----------------------------
// WIRE TYPES
// -----------------------------
// OANDA encodes every decimal as a JSON string.

type oandaPricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Time       string `json:"time"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

type oandaOrderResponse struct {
	OrderFillTransaction *struct {
		Price       string `json:"price"`
		Units       string `json:"units"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
			Units   string `json:"units"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	OrderRejectTransaction *struct {
		RejectReason string `json:"rejectReason"`
	} `json:"orderRejectTransaction"`
	ErrorMessage string `json:"errorMessage"`
}

type oandaCloseResponse struct {
	OrderFillTransaction *struct {
		Price string `json:"price"`
		Pl    string `json:"pl"`
	} `json:"orderFillTransaction"`
	ErrorMessage string `json:"errorMessage"`
}

type oandaAccountResponse struct {
	Account struct {
		ID              string `json:"id"`
		Balance         string `json:"balance"`
		UnrealizedPL    string `json:"unrealizedPL"`
		Pl              string `json:"pl"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
		Currency        string `json:"currency"`
	} `json:"account"`
}

type oandaTrade struct {
	ID            string `json:"id"`
	Instrument    string `json:"instrument"`
	CurrentUnits  string `json:"currentUnits"`
	Price         string `json:"price"`
	UnrealizedPL  string `json:"unrealizedPL"`
	OpenTime      string `json:"openTime"`
	StopLossOrder *struct {
		Price string `json:"price"`
	} `json:"stopLossOrder"`
	TakeProfitOrder *struct {
		Price string `json:"price"`
	} `json:"takeProfitOrder"`
}

type oandaOpenTradesResponse struct {
	Trades []oandaTrade `json:"trades"`
}

type oandaPositionSide struct {
	Units        string `json:"units"`
	AveragePrice string `json:"averagePrice"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type oandaOpenPositionsResponse struct {
	Positions []struct {
		Instrument   string            `json:"instrument"`
		Long         oandaPositionSide `json:"long"`
		Short        oandaPositionSide `json:"short"`
		UnrealizedPL string            `json:"unrealizedPL"`
		MarginUsed   string            `json:"marginUsed"`
	} `json:"positions"`
}

// -----------------------------
// PRICING
// -----------------------------

// GetPrice fetches the current two-sided quote for one instrument.
func (c *OandaClient) GetPrice(ctx context.Context, symbol string) (*Price, error) {
	var parsed oandaPricingResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("instruments", symbol).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/accounts/%s/pricing", c.accountID))

	if err != nil {
		return nil, fmt.Errorf("pricing request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("pricing HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if len(parsed.Prices) == 0 || len(parsed.Prices[0].Bids) == 0 || len(parsed.Prices[0].Asks) == 0 {
		return nil, fmt.Errorf("no price available for %s", symbol)
	}

	quote := parsed.Prices[0]

	bid, err := strconv.ParseFloat(quote.Bids[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad bid price %q: %w", quote.Bids[0].Price, err)
	}
	ask, err := strconv.ParseFloat(quote.Asks[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad ask price %q: %w", quote.Asks[0].Price, err)
	}

	quoteTime, _ := time.Parse(time.RFC3339Nano, quote.Time)

	return &Price{
		Symbol: quote.Instrument,
		Bid:    bid,
		Ask:    ask,
		Mid:    instrument.NormalizePrice((bid+ask)/2, quote.Instrument),
		Time:   quoteTime,
	}, nil
}

// -----------------------------
// ORDERS
// -----------------------------

// PlaceMarketOrder submits a single atomic market order. Stop-loss and
// take-profit ride on the order itself (stopLossOnFill / takeProfitOnFill),
// so a fill can never exist without its protective levels.
func (c *OandaClient) PlaceMarketOrder(ctx context.Context, symbol string, units int, stopLoss, takeProfit *float64) (*OrderFill, error) {
	order := map[string]interface{}{
		"type":         "MARKET",
		"instrument":   symbol,
		"units":        strconv.Itoa(units),
		"timeInForce":  "FOK",
		"positionFill": "DEFAULT",
	}
	if stopLoss != nil {
		order["stopLossOnFill"] = map[string]string{
			"price": formatPrice(*stopLoss, symbol),
		}
	}
	if takeProfit != nil {
		order["takeProfitOnFill"] = map[string]string{
			"price": formatPrice(*takeProfit, symbol),
		}
	}

	logger.WithFields(map[string]interface{}{
		"connector": "oanda",
		"op":        "PlaceMarketOrder",
		"symbol":    symbol,
		"units":     units,
	}).Debug("Submitting market order")

	var parsed oandaOrderResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"order": order}).
		Post(fmt.Sprintf("/v3/accounts/%s/orders", c.accountID))

	if err != nil {
		return nil, fmt.Errorf("order request failed: %w", err)
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("bad order response: %w", err)
	}

	if parsed.OrderRejectTransaction != nil {
		return nil, &RejectionError{Reason: parsed.OrderRejectTransaction.RejectReason}
	}
	if parsed.OrderCancelTransaction != nil {
		return nil, &RejectionError{Reason: parsed.OrderCancelTransaction.Reason}
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return nil, fmt.Errorf("order HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if parsed.OrderFillTransaction == nil || parsed.OrderFillTransaction.TradeOpened == nil {
		return nil, fmt.Errorf("order response carried no fill: %s", resp.String())
	}

	fill := parsed.OrderFillTransaction

	price, err := strconv.ParseFloat(fill.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad fill price %q: %w", fill.Price, err)
	}
	filledUnits, _ := strconv.Atoi(fill.Units)

	logger.WithFields(map[string]interface{}{
		"connector": "oanda",
		"op":        "PlaceMarketOrder",
		"trade_id":  fill.TradeOpened.TradeID,
		"price":     price,
	}).Info("Market order filled")

	return &OrderFill{
		TradeID:   fill.TradeOpened.TradeID,
		FillPrice: price,
		Units:     filledUnits,
	}, nil
}

// CloseTrade closes the full remaining size of a trade.
func (c *OandaClient) CloseTrade(ctx context.Context, tradeID string) (*CloseResult, error) {
	var parsed oandaCloseResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"units": "ALL"}).
		SetResult(&parsed).
		Put(fmt.Sprintf("/v3/accounts/%s/trades/%s/close", c.accountID, tradeID))

	if err != nil {
		return nil, fmt.Errorf("close request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("close HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if parsed.OrderFillTransaction == nil {
		return nil, fmt.Errorf("close response carried no fill: %s", resp.String())
	}

	price, err := strconv.ParseFloat(parsed.OrderFillTransaction.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad close price %q: %w", parsed.OrderFillTransaction.Price, err)
	}
	realized, _ := strconv.ParseFloat(parsed.OrderFillTransaction.Pl, 64)

	logger.WithFields(map[string]interface{}{
		"connector": "oanda",
		"op":        "CloseTrade",
		"trade_id":  tradeID,
		"price":     price,
	}).Info("Trade closed at broker")

	return &CloseResult{ClosePrice: price, RealizedPnl: realized}, nil
}

// SetTradeProtection attaches or replaces stop-loss / take-profit orders on
// an already open trade.
func (c *OandaClient) SetTradeProtection(ctx context.Context, tradeID, symbol string, stopLoss, takeProfit *float64) error {
	body := map[string]interface{}{}
	if stopLoss != nil {
		body["stopLoss"] = map[string]string{"price": formatPrice(*stopLoss, symbol)}
	}
	if takeProfit != nil {
		body["takeProfit"] = map[string]string{"price": formatPrice(*takeProfit, symbol)}
	}
	if len(body) == 0 {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(fmt.Sprintf("/v3/accounts/%s/trades/%s/orders", c.accountID, tradeID))

	if err != nil {
		return fmt.Errorf("protection request failed: %w", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return fmt.Errorf("protection HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	logger.WithFields(map[string]interface{}{
		"connector": "oanda",
		"op":        "SetTradeProtection",
		"trade_id":  tradeID,
	}).Info("Trade protection updated at broker")

	return nil
}

// -----------------------------
// ACCOUNT & POSITIONS
// -----------------------------

// GetAccount fetches the account summary.
func (c *OandaClient) GetAccount(ctx context.Context) (*AccountSummary, error) {
	var parsed oandaAccountResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/accounts/%s", c.accountID))

	if err != nil {
		return nil, fmt.Errorf("account request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("account HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	acc := parsed.Account

	balance, err := strconv.ParseFloat(acc.Balance, 64)
	if err != nil {
		return nil, fmt.Errorf("bad balance %q: %w", acc.Balance, err)
	}
	unrealized, _ := strconv.ParseFloat(acc.UnrealizedPL, 64)
	realized, _ := strconv.ParseFloat(acc.Pl, 64)
	marginUsed, _ := strconv.ParseFloat(acc.MarginUsed, 64)
	marginAvail, _ := strconv.ParseFloat(acc.MarginAvailable, 64)

	return &AccountSummary{
		AccountID:       acc.ID,
		Balance:         balance,
		UnrealizedPnl:   unrealized,
		RealizedPnl:     realized,
		MarginUsed:      marginUsed,
		MarginAvailable: marginAvail,
		Currency:        acc.Currency,
	}, nil
}

// ListOpenTrades fetches every trade still open at the broker.
func (c *OandaClient) ListOpenTrades(ctx context.Context) ([]BrokerTrade, error) {
	var parsed oandaOpenTradesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/accounts/%s/openTrades", c.accountID))

	if err != nil {
		return nil, fmt.Errorf("open trades request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("open trades HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	trades := make([]BrokerTrade, 0, len(parsed.Trades))
	for _, raw := range parsed.Trades {
		units, _ := strconv.Atoi(strings.TrimSuffix(raw.CurrentUnits, ".0"))
		entry, err := strconv.ParseFloat(raw.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("bad trade price %q: %w", raw.Price, err)
		}
		unrealized, _ := strconv.ParseFloat(raw.UnrealizedPL, 64)
		openedAt, _ := time.Parse(time.RFC3339Nano, raw.OpenTime)

		trade := BrokerTrade{
			TradeID:       raw.ID,
			Symbol:        raw.Instrument,
			Units:         units,
			EntryPrice:    entry,
			UnrealizedPnl: unrealized,
			OpenedAt:      openedAt,
		}
		if raw.StopLossOrder != nil {
			if sl, err := strconv.ParseFloat(raw.StopLossOrder.Price, 64); err == nil {
				trade.StopLoss = &sl
			}
		}
		if raw.TakeProfitOrder != nil {
			if tp, err := strconv.ParseFloat(raw.TakeProfitOrder.Price, 64); err == nil {
				trade.TakeProfit = &tp
			}
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// ListPositions fetches net exposure per instrument.
func (c *OandaClient) ListPositions(ctx context.Context) ([]BrokerPosition, error) {
	var parsed oandaOpenPositionsResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/accounts/%s/openPositions", c.accountID))

	if err != nil {
		return nil, fmt.Errorf("positions request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("positions HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	positions := make([]BrokerPosition, 0, len(parsed.Positions))
	for _, raw := range parsed.Positions {
		longUnits, _ := strconv.Atoi(strings.TrimSuffix(raw.Long.Units, ".0"))
		shortUnits, _ := strconv.Atoi(strings.TrimSuffix(raw.Short.Units, ".0"))
		unrealized, _ := strconv.ParseFloat(raw.UnrealizedPL, 64)
		marginUsed, _ := strconv.ParseFloat(raw.MarginUsed, 64)

		position := BrokerPosition{
			Symbol:        raw.Instrument,
			LongUnits:     longUnits,
			ShortUnits:    shortUnits,
			UnrealizedPnl: unrealized,
			MarginUsed:    marginUsed,
		}
		if longUnits != 0 {
			if avg, err := strconv.ParseFloat(raw.Long.AveragePrice, 64); err == nil {
				position.LongAvgPrice = &avg
			}
		}
		if shortUnits != 0 {
			if avg, err := strconv.ParseFloat(raw.Short.AveragePrice, 64); err == nil {
				position.ShortAvgPrice = &avg
			}
		}
		positions = append(positions, position)
	}

	return positions, nil
}

// formatPrice renders a price at the instrument's precision, the format
// OANDA expects for every price field.
func formatPrice(price float64, symbol string) string {
	precision := instrument.Precision(symbol)
	return strconv.FormatFloat(instrument.NormalizePrice(price, symbol), 'f', int(precision), 64)
}
