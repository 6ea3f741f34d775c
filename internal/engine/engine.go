package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/internal/exchange"
	"github.com/kirillm/spread-bot/pkg/utils"
)

// Telemetry контракт overwatch-клиента, нужный движку
type Telemetry interface {
	GetConfig(ctx context.Context) (*domain.BotConfig, error)
	RecordPrice(ctx context.Context, prices *domain.ReferencePrice) error
	RecordBalances(ctx context.Context, balance *domain.Balance) error
	RecordPlacedOrder(ctx context.Context, base, quote, orderType string, price, amount float64) error
	GetLastTradeID(ctx context.Context) (string, error)
	RecordTrade(ctx context.Context, trade *domain.Trade) error
}

// Resolver контракт прайс-резолвера
type Resolver interface {
	Resolve(ctx context.Context, cfg *domain.BotConfig) (float64, error)
}

// Engine выполняет один цикл сверки ордеров против биржи.
// Между циклами состояния нет: конфигурация, цены, ордера и балансы
// запрашиваются заново каждый цикл, поэтому пропущенный или упавший
// цикл чинится следующим.
type Engine struct {
	botName  string
	exchange string

	venue     exchange.Gateway
	resolver  Resolver
	telemetry Telemetry
	alerts    alert.Sink
	logger    *utils.Logger

	// внедряются для детерминизма в тестах
	rng   *rand.Rand
	sleep func(time.Duration)

	sleepShort  time.Duration
	sleepMedium time.Duration
	sleepLong   time.Duration
}

// Sleeps паузы между разрушающими операциями и размещениями.
// Нужны биржам с жёсткими лимитами, убирать целиком нельзя.
type Sleeps struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

func New(
	botName string,
	exchangeName string,
	venue exchange.Gateway,
	resolver Resolver,
	telemetry Telemetry,
	alerts alert.Sink,
	logger *utils.Logger,
	sleeps Sleeps,
) *Engine {
	return &Engine{
		botName:     botName,
		exchange:    exchangeName,
		venue:       venue,
		resolver:    resolver,
		telemetry:   telemetry,
		alerts:      alerts,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       time.Sleep,
		sleepShort:  sleeps.Short,
		sleepMedium: sleeps.Medium,
		sleepLong:   sleeps.Long,
	}
}

// cycle данные одного цикла. Флаг reverse вычисляется здесь один раз
// и держится неизменным: он управляет каждой конверсией единиц.
type cycle struct {
	cfg            *domain.BotConfig
	reverse        bool
	prices         *domain.ReferencePrice
	minOrderAmount float64
	limits         *domain.MarketLimits
}

// RunCycle выполняет один полный цикл сверки.
// Отсутствие цены фатально для проходов; ошибка биржи внутри прохода
// прерывает только его, остальные проходы выполняются.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	cfg, err := e.telemetry.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	if cfg.Stop {
		e.logger.Warn("STOP SIGNAL RECEIVED")
		if err := e.venue.CancelAllOrders(ctx, cfg.Base, cfg.Quote); err != nil {
			e.logger.Error("failed to cancel all orders: %v", err)
		}
		e.reportBalances(ctx, cfg, cfg.Reverse(), nil)
		return nil
	}

	c := &cycle{
		cfg:     cfg,
		reverse: cfg.Reverse(),
	}

	e.logger.Info("working on %s_%s, reversed pair = %v", cfg.Base, cfg.Quote, c.reverse)

	marketPrice, err := e.venue.LastPrice(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		e.logger.Error("failed to get market price: %v", err)
		marketPrice = nil
	}

	var price float64
	if cfg.UseMarketPrice {
		e.logger.Info("using market price")
		if marketPrice == nil {
			return e.abortNoPrice(ctx, cfg, c.reverse)
		}
		price = *marketPrice
	} else {
		price, err = e.resolver.Resolve(ctx, cfg)
		if err != nil {
			e.logger.Error("failed to resolve price: %v", err)
			return e.abortNoPrice(ctx, cfg, c.reverse)
		}
	}

	c.prices = &domain.ReferencePrice{
		Price:       price,
		BidPrice:    price - (cfg.Fee+cfg.BidSpread)*price,
		AskPrice:    price + (cfg.Fee+cfg.AskSpread)*price,
		MarketPrice: marketPrice,
	}

	e.logger.Info("bid price set to %.8f", c.prices.BidPrice)
	e.logger.Info("ask price set to %.8f", c.prices.AskPrice)

	if err := e.telemetry.RecordPrice(ctx, c.prices); err != nil {
		e.logger.Error("failed to record prices: %v", err)
	}

	e.sleep(e.sleepShort)

	// проход A: отмена ордеров, пересекающих спред
	if err := e.cancelOverlaps(ctx, c); err != nil {
		e.logger.Error("overlap pass failed: %v", err)
	}

	e.sleep(e.sleepShort)

	// проход B: снятие излишков над таргетом стороны
	if err := e.trimOverTarget(ctx, c, domain.SideBid, cfg.TotalBid, c.prices.BidPrice); err != nil {
		e.logger.Error("trim pass failed for bid: %v", err)
	}
	if err := e.trimOverTarget(ctx, c, domain.SideAsk, cfg.TotalAsk, c.prices.AskPrice); err != nil {
		e.logger.Error("trim pass failed for ask: %v", err)
	}

	e.sleep(e.sleepShort)

	// лимиты пары нужны проходам C и D для валидации кандидатов
	limits, err := e.venue.MarketLimits(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		e.logger.Error("failed to get market limits: %v", err)
		limits = &domain.MarketLimits{}
	}
	c.limits = limits
	c.minOrderAmount = limits.MinAmount

	// проход C: пересадка ордеров, выпавших из tolerance
	if err := e.resetOutOfTolerance(ctx, c, domain.SideBid, c.prices.BidPrice); err != nil {
		e.logger.Error("tolerance pass failed for bid: %v", err)
	}
	if err := e.resetOutOfTolerance(ctx, c, domain.SideAsk, c.prices.AskPrice); err != nil {
		e.logger.Error("tolerance pass failed for ask: %v", err)
	}

	e.sleep(e.sleepShort)

	// проход D: добор стороны до таргета
	if err := e.topUpToTarget(ctx, c, domain.SideBid, cfg.TotalBid, c.prices.BidPrice); err != nil {
		e.logger.Error("top-up pass failed for bid: %v", err)
	}
	if err := e.topUpToTarget(ctx, c, domain.SideAsk, cfg.TotalAsk, c.prices.AskPrice); err != nil {
		e.logger.Error("top-up pass failed for ask: %v", err)
	}

	e.reportBalances(ctx, cfg, c.reverse, &price)

	e.sleep(e.sleepLong)

	e.reportTrades(ctx, cfg)

	e.logger.Info("cycle complete in %.1f seconds", time.Since(start).Seconds())

	return nil
}

// abortNoPrice закрывает цикл без цены: снять все ордера, отчитаться
// балансами, сверку не выполнять
func (e *Engine) abortNoPrice(ctx context.Context, cfg *domain.BotConfig, reverse bool) error {
	e.logger.Warn("no price available")
	if err := e.venue.CancelAllOrders(ctx, cfg.Base, cfg.Quote); err != nil {
		e.logger.Error("failed to cancel all orders: %v", err)
	}
	e.reportBalances(ctx, cfg, reverse, nil)
	return domain.ErrNoPrice
}
