package exchange

import (
	"context"

	"github.com/kirillm/spread-bot/internal/domain"
)

// Gateway контракт обёртки биржи. Одна реализация на биржу.
//
// Ошибки различают временные (rate limit, гонка nonce) и постоянные:
// временные ретраятся внутри реализации ограниченным числом попыток
// с фиксированным backoff, после чего вызов считается постоянно
// неудавшимся. Движок при этом прерывает только текущий проход.
type Gateway interface {
	// PlaceOrder размещает лимитный ордер и возвращает его id
	PlaceOrder(ctx context.Context, base, quote, orderType string, price, amount float64) (string, error)

	// CancelOrder отменяет ордер, true при успехе
	CancelOrder(ctx context.Context, id string) (bool, error)

	// OpenOrders возвращает открытые ордера пары по сторонам
	OpenOrders(ctx context.Context, base, quote string) (*domain.OpenOrders, error)

	// Balance возвращает доступный баланс валюты, nil если биржа его не отдала
	Balance(ctx context.Context, currency string) (*float64, error)

	// Trades возвращает исполненные сделки пары, новые первыми
	Trades(ctx context.Context, base, quote string) ([]domain.Trade, error)

	// MarketLimits возвращает лимиты пары для валидации ордеров
	MarketLimits(ctx context.Context, base, quote string) (*domain.MarketLimits, error)

	// LastPrice возвращает последнюю рыночную цену пары, nil если недоступна
	LastPrice(ctx context.Context, base, quote string) (*float64, error)

	// CancelAllOrders отменяет все открытые ордера пары
	CancelAllOrders(ctx context.Context, base, quote string) error
}
