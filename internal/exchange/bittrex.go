package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/config"
	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

const bittrexTimeLayout = "2006-01-02T15:04:05"

// BittrexClient реализация Gateway поверх Bittrex API v1.1
type BittrexClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	botName   string
	client    *http.Client
	limiter   *rate.Limiter
	alerts    alert.Sink
	logger    *utils.Logger
	attempts  int
	backoff   time.Duration
}

type bittrexResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type bittrexOrder struct {
	OrderUuid         string  `json:"OrderUuid"`
	Exchange          string  `json:"Exchange"`
	OrderType         string  `json:"OrderType"`
	Quantity          float64 `json:"Quantity"`
	QuantityRemaining float64 `json:"QuantityRemaining"`
	Limit             float64 `json:"Limit"`
	Price             float64 `json:"Price"`
	PricePerUnit      float64 `json:"PricePerUnit"`
	TimeStamp         string  `json:"TimeStamp"`
	Closed            string  `json:"Closed"`
}

type bittrexBalance struct {
	Currency  string  `json:"Currency"`
	Available float64 `json:"Available"`
}

type bittrexMarket struct {
	BaseCurrency   string  `json:"BaseCurrency"`
	MarketCurrency string  `json:"MarketCurrency"`
	MinTradeSize   float64 `json:"MinTradeSize"`
}

type bittrexMarketSummary struct {
	MarketName string  `json:"MarketName"`
	Bid        float64 `json:"Bid"`
	Ask        float64 `json:"Ask"`
}

func NewBittrexClient(cfg config.VenueConfig, botName string, alerts alert.Sink, logger *utils.Logger) *BittrexClient {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 5
	}
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}

	return &BittrexClient{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		botName:   botName,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		alerts:    alerts,
		logger:    logger,
		attempts:  attempts,
		backoff:   cfg.RetryBackoff,
	}
}

// request выполняет подписанный запрос с ограниченным числом попыток.
// Временные ошибки (сеть, 429, 5xx) ретраятся с фиксированным backoff;
// после исчерпания попыток вызов считается постоянно неудавшимся.
func (b *BittrexClient) request(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < b.attempts; attempt++ {
		if attempt > 0 {
			b.logger.Warn("retrying %s after %s (attempt %d/%d): %v",
				path, b.backoff, attempt+1, b.attempts, lastErr)
			select {
			case <-time.After(b.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := b.once(ctx, path, params, true)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// постоянная ошибка ретраить бессмысленно
		if !isTransient(err) {
			b.alertVenueError(ctx, path, err)
			return nil, err
		}
	}

	err := fmt.Errorf("%w: %d attempts to call %s have failed: %v",
		domain.ErrVenuePermanent, b.attempts, path, lastErr)
	b.alertVenueError(ctx, path, err)
	return nil, err
}

// public выполняет неподписанный запрос к публичному API
func (b *BittrexClient) public(ctx context.Context, path string) (json.RawMessage, error) {
	return b.once(ctx, path, nil, false)
}

func (b *BittrexClient) once(ctx context.Context, path string, params url.Values, signed bool) (json.RawMessage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestURL := fmt.Sprintf("%s/%s", b.baseURL, path)
	if signed {
		requestURL = fmt.Sprintf("%s?apikey=%s&nonce=%d", requestURL, b.apiKey, time.Now().UnixMilli())
		if encoded := params.Encode(); encoded != "" {
			requestURL += "&" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrVenuePermanent, err)
	}

	if signed {
		mac := hmac.New(sha512.New, []byte(b.apiSecret))
		mac.Write([]byte(requestURL))
		req.Header.Set("apisign", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVenueTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: got response code %d", domain.ErrVenueTransient, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrVenueTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: got a bad response code: %d %s",
			domain.ErrVenuePermanent, resp.StatusCode, string(body))
	}

	var envelope bittrexResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %s", domain.ErrVenuePermanent, string(body))
	}

	if !envelope.Success {
		return nil, fmt.Errorf("%w: api call failed: %s", domain.ErrVenuePermanent, envelope.Message)
	}

	return envelope.Result, nil
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrVenueTransient)
}

func (b *BittrexClient) alertVenueError(ctx context.Context, action string, err error) {
	b.alerts.VenueError(ctx, alert.VenueErrorAlert{
		BotName:  b.botName,
		Exchange: "Bittrex",
		Action:   action,
		Error:    err.Error(),
	})
}

func market(base, quote string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(base), strings.ToUpper(quote))
}

// PlaceOrder размещает лимитный ордер
func (b *BittrexClient) PlaceOrder(ctx context.Context, base, quote, orderType string, price, amount float64) (string, error) {
	endpoint := "market/buylimit"
	if orderType == domain.OrderTypeSell {
		endpoint = "market/selllimit"
	}

	b.logger.Info("placing %s order. %.4f@%.8f", orderType, amount, price)

	params := url.Values{}
	params.Set("market", market(base, quote))
	params.Set("quantity", fmt.Sprintf("%.8f", amount))
	params.Set("rate", fmt.Sprintf("%.8f", price))

	raw, err := b.request(ctx, endpoint, params)
	if err != nil {
		return "", err
	}

	var result struct {
		Uuid string `json:"uuid"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if result.Uuid == "" {
		return "", fmt.Errorf("%w: no order id returned", domain.ErrVenuePermanent)
	}

	return result.Uuid, nil
}

// CancelOrder отменяет ордер по id
func (b *BittrexClient) CancelOrder(ctx context.Context, id string) (bool, error) {
	params := url.Values{}
	params.Set("uuid", id)

	if _, err := b.request(ctx, "market/cancel", params); err != nil {
		return false, err
	}
	return true, nil
}

// OpenOrders возвращает открытые ордера пары, разложенные по сторонам
func (b *BittrexClient) OpenOrders(ctx context.Context, base, quote string) (*domain.OpenOrders, error) {
	params := url.Values{}
	params.Set("market", market(base, quote))

	raw, err := b.request(ctx, "market/getopenorders", params)
	if err != nil {
		return nil, err
	}

	var list []bittrexOrder
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	orders := &domain.OpenOrders{}
	for _, order := range list {
		if order.Exchange != market(base, quote) {
			continue
		}

		open := domain.OpenOrder{
			ID:     order.OrderUuid,
			Amount: order.QuantityRemaining,
			Price:  order.Limit,
		}

		if order.OrderType == "LIMIT_SELL" {
			orders.Ask = append(orders.Ask, open)
		} else {
			orders.Bid = append(orders.Bid, open)
		}
	}

	return orders, nil
}

// Balance возвращает доступный баланс валюты, nil если её нет в ответе
func (b *BittrexClient) Balance(ctx context.Context, currency string) (*float64, error) {
	raw, err := b.request(ctx, "account/getbalances", url.Values{})
	if err != nil {
		return nil, err
	}

	var balances []bittrexBalance
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, balance := range balances {
		if balance.Currency == currency {
			available := balance.Available
			return &available, nil
		}
	}

	return nil, nil
}

// Trades возвращает исполненные сделки пары, новые первыми
func (b *BittrexClient) Trades(ctx context.Context, base, quote string) ([]domain.Trade, error) {
	params := url.Values{}
	params.Set("limit", "0")

	raw, err := b.request(ctx, "account/getorderhistory", params)
	if err != nil {
		return nil, err
	}

	var history []bittrexOrder
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var trades []domain.Trade
	for _, order := range history {
		if order.Exchange != market(base, quote) {
			continue
		}

		opened, err := parseBittrexTime(order.TimeStamp)
		if err != nil {
			continue
		}
		closed, err := parseBittrexTime(order.Closed)
		if err != nil {
			continue
		}

		tradeType := domain.OrderTypeBuy
		if order.OrderType == "LIMIT_SELL" {
			tradeType = domain.OrderTypeSell
		}

		trades = append(trades, domain.Trade{
			ID:     order.OrderUuid,
			Type:   tradeType,
			Time:   closed,
			Price:  order.PricePerUnit,
			Amount: order.Quantity - order.QuantityRemaining,
			Total:  order.Price,
			Age:    int64(closed.Sub(opened).Seconds()),
		})
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Time.After(trades[j].Time)
	})

	return trades, nil
}

// Bittrex отдаёт время с дробной частью секунды, она отбрасывается
func parseBittrexTime(value string) (time.Time, error) {
	return time.Parse(bittrexTimeLayout, strings.SplitN(value, ".", 2)[0])
}

// MarketLimits возвращает лимиты пары. Bittrex публикует только
// минимальный размер сделки, остальные поля остаются нулевыми.
func (b *BittrexClient) MarketLimits(ctx context.Context, base, quote string) (*domain.MarketLimits, error) {
	raw, err := b.public(ctx, "public/getmarkets")
	if err != nil {
		return nil, err
	}

	var markets []bittrexMarket
	if err := json.Unmarshal(raw, &markets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, m := range markets {
		if m.BaseCurrency == strings.ToUpper(base) && m.MarketCurrency == strings.ToUpper(quote) {
			return &domain.MarketLimits{MinAmount: m.MinTradeSize}, nil
		}
	}

	return nil, fmt.Errorf("%w: market %s", domain.ErrNotFound, market(base, quote))
}

// LastPrice возвращает середину между лучшим bid и ask
func (b *BittrexClient) LastPrice(ctx context.Context, base, quote string) (*float64, error) {
	raw, err := b.public(ctx, "public/getmarketsummaries")
	if err != nil {
		return nil, err
	}

	var summaries []bittrexMarketSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, summary := range summaries {
		if summary.MarketName == market(base, quote) {
			mid := (summary.Bid + summary.Ask) / 2
			return &mid, nil
		}
	}

	return nil, nil
}

// CancelAllOrders отменяет все открытые ордера пары
func (b *BittrexClient) CancelAllOrders(ctx context.Context, base, quote string) error {
	orders, err := b.OpenOrders(ctx, base, quote)
	if err != nil {
		return err
	}

	for _, order := range append(orders.Bid, orders.Ask...) {
		if _, err := b.CancelOrder(ctx, order.ID); err != nil {
			b.logger.Error("failed to cancel order %s: %v", order.ID, err)
		}
	}

	return nil
}
