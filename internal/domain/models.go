package domain

import "time"

// BotConfig конфигурация пары, получаемая из overwatch перед каждым циклом.
// Не кешируется между циклами.
type BotConfig struct {
	Name           string  `json:"name"`
	Exchange       string  `json:"exchange"`
	Base           string  `json:"base"`
	Quote          string  `json:"quote"`
	Track          string  `json:"track"`
	Peg            string  `json:"peg"`
	PegSide        string  `json:"peg_side"` // "base" или "quote", когда peg не входит в пару
	Tolerance      float64 `json:"tolerance"`
	Fee            float64 `json:"fee"`
	BidSpread      float64 `json:"bid_spread"`
	AskSpread      float64 `json:"ask_spread"`
	OrderAmount    float64 `json:"order_amount"`
	TotalBid       float64 `json:"total_bid"`
	TotalAsk       float64 `json:"total_ask"`
	UseMarketPrice bool    `json:"market_price"`
	Stop           bool    `json:"stop"`
}

// Reverse сообщает, является ли пара перевёрнутой (quote == track).
// Флаг вычисляется один раз на цикл и управляет всеми конверсиями единиц.
func (c *BotConfig) Reverse() bool {
	return c.Quote == c.Track
}

// ReferencePrice цены, рассчитанные на один цикл
type ReferencePrice struct {
	Price       float64
	BidPrice    float64
	AskPrice    float64
	MarketPrice *float64
}

// OpenOrder открытый ордер на бирже
type OpenOrder struct {
	ID     string
	Price  float64
	Amount float64
}

// OpenOrders открытые ордера пары, по сторонам
type OpenOrders struct {
	Bid []OpenOrder
	Ask []OpenOrder
}

// Side возвращает ордера запрошенной стороны
func (o *OpenOrders) Side(side string) []OpenOrder {
	if side == SideAsk {
		return o.Ask
	}
	return o.Bid
}

// Balance балансы, отправляемые в overwatch
type Balance struct {
	Unit         string
	BidAvailable float64
	AskAvailable float64
	BidOnOrder   float64
	AskOnOrder   float64
}

// Trade исполненная сделка с биржи
type Trade struct {
	ID     string
	Type   string // "buy" или "sell"
	Time   time.Time
	Price  float64
	Amount float64
	Total  float64
	Age    int64 // секунды между открытием и закрытием ордера
}

// MarketLimits лимиты пары; кандидат ордера проверяется перед отправкой
type MarketLimits struct {
	MinAmount float64
	MaxAmount float64
	MinPrice  float64
	MaxPrice  float64
	MinCost   float64
	MaxCost   float64
}
