package overwatch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

// Client клиент сервиса overwatch: источник конфигурации бота и приёмник
// телеметрии (цены, балансы, ордера, сделки). Каждый запрос подписывается
// HMAC-SHA256 от name+exchange+nonce; nonce строго возрастает.
type Client struct {
	baseURL   string
	apiSecret string
	name      string
	exchange  string
	client    *http.Client
	logger    *utils.Logger

	mu        sync.Mutex
	lastNonce int64
}

type envelope struct {
	Success *bool  `json:"success"`
	TradeID string `json:"trade_id"`
}

func NewClient(baseURL, apiSecret, name, exchange string, logger *utils.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		name:      name,
		exchange:  exchange,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// nonce возвращает строго возрастающий nonce. Часы в миллисекундах,
// при совпадении с предыдущим значением берётся предыдущее плюс один.
func (c *Client) nonce() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := time.Now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// sign подписывает запрос: HMAC-SHA256 от lower(name)+lower(exchange)+nonce
func (c *Client) sign() (int64, string) {
	nonce := c.nonce()
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	fmt.Fprintf(mac, "%s%s%d", strings.ToLower(c.name), strings.ToLower(c.exchange), nonce)
	return nonce, hex.EncodeToString(mac.Sum(nil))
}

// authValues возвращает общие для всех запросов параметры
func (c *Client) authValues() url.Values {
	nonce, hash := c.sign()
	values := url.Values{}
	values.Set("name", c.name)
	values.Set("exchange", c.exchange)
	values.Set("n", strconv.FormatInt(nonce, 10))
	values.Set("h", hash)
	return values
}

func (c *Client) get(ctx context.Context, path string, body interface{}) error {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, c.authValues().Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, body)
}

func (c *Client) post(ctx context.Context, path string, data url.Values) error {
	values := c.authValues()
	for key, vals := range data {
		for _, v := range vals {
			values.Add(key, v)
		}
	}

	req, err := http.NewRequestWithContext(
		ctx, "POST", c.baseURL+path, strings.NewReader(values.Encode()),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, body interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("overwatch gave a bad response code: %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("overwatch did not return valid JSON: %s", string(raw))
	}

	if env.Success != nil && !*env.Success {
		return fmt.Errorf("overwatch reported a failure: %s", string(raw))
	}

	if body != nil {
		if err := json.Unmarshal(raw, body); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// GetConfig запрашивает конфигурацию пары для этого бота.
// Вызывается в начале каждого цикла, между циклами не кешируется.
func (c *Client) GetConfig(ctx context.Context) (*domain.BotConfig, error) {
	var cfg domain.BotConfig
	if err := c.get(ctx, "/bot/config", &cfg); err != nil {
		return nil, fmt.Errorf("unable to get config for %s@%s: %w", c.name, c.exchange, err)
	}
	return &cfg, nil
}

// RecordPrice отправляет цены цикла
func (c *Client) RecordPrice(ctx context.Context, prices *domain.ReferencePrice) error {
	data := url.Values{}
	data.Set("price", formatFloat(prices.Price))
	data.Set("bid_price", formatFloat(prices.BidPrice))
	data.Set("ask_price", formatFloat(prices.AskPrice))
	if prices.MarketPrice != nil {
		data.Set("market_price", formatFloat(*prices.MarketPrice))
	}
	return c.post(ctx, "/bot/prices", data)
}

// RecordBalances отправляет балансы по обеим сторонам
func (c *Client) RecordBalances(ctx context.Context, balance *domain.Balance) error {
	data := url.Values{}
	data.Set("unit", balance.Unit)
	data.Set("bid_available", formatFloat(balance.BidAvailable))
	data.Set("ask_available", formatFloat(balance.AskAvailable))
	data.Set("bid_on_order", formatFloat(balance.BidOnOrder))
	data.Set("ask_on_order", formatFloat(balance.AskOnOrder))
	return c.post(ctx, "/bot/balances", data)
}

// RecordPlacedOrder отправляет успешно размещённый ордер
func (c *Client) RecordPlacedOrder(ctx context.Context, base, quote, orderType string, price, amount float64) error {
	data := url.Values{}
	data.Set("base", base)
	data.Set("quote", quote)
	data.Set("order_type", orderType)
	data.Set("price", formatFloat(price))
	data.Set("amount", formatFloat(amount))
	return c.post(ctx, "/bot/placed_order", data)
}

// GetLastTradeID возвращает id последней известной overwatch сделки.
// Используется как эксклюзивная нижняя граница при отправке новых сделок.
func (c *Client) GetLastTradeID(ctx context.Context) (string, error) {
	var env envelope
	if err := c.get(ctx, "/bot/trades", &env); err != nil {
		return "", err
	}
	return env.TradeID, nil
}

// RecordTrade отправляет одну сделку. Дедупликация по trade_id
// на стороне overwatch, повторная отправка безопасна.
func (c *Client) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	data := url.Values{}
	data.Set("trade_time", trade.Time.UTC().Format("2006-01-02T15:04:05"))
	data.Set("trade_id", trade.ID)
	data.Set("trade_type", trade.Type)
	data.Set("price", formatFloat(trade.Price))
	data.Set("amount", formatFloat(trade.Amount))
	data.Set("total", formatFloat(trade.Total))
	data.Set("age", strconv.FormatInt(trade.Age, 10))
	return c.post(ctx, "/bot/trades", data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
