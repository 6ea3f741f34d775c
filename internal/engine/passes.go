package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/domain"
)

// cancelOverlaps проход A: снимает ордера, залезшие за цену противоположной
// стороны. Bid дороже ask-цены или ask дешевле bid-цены — это протухшая
// котировка, пересёкшая спред.
func (e *Engine) cancelOverlaps(ctx context.Context, c *cycle) error {
	orders, err := e.venue.OpenOrders(ctx, c.cfg.Base, c.cfg.Quote)
	if err != nil {
		return fmt.Errorf("failed to get open orders: %w", err)
	}

	for _, order := range orders.Bid {
		if order.Price > c.prices.AskPrice {
			e.logger.Info("cancelling overlapping bid order %s at %.8f", order.ID, order.Price)
			if _, err := e.venue.CancelOrder(ctx, order.ID); err != nil {
				e.logger.Error("failed to cancel order %s: %v", order.ID, err)
			}
		}
	}

	for _, order := range orders.Ask {
		if order.Price < c.prices.BidPrice {
			e.logger.Info("cancelling overlapping ask order %s at %.8f", order.ID, order.Price)
			if _, err := e.venue.CancelOrder(ctx, order.ID); err != nil {
				e.logger.Error("failed to cancel order %s: %v", order.ID, err)
			}
		}
	}

	return nil
}

// trimOverTarget проход B: если сторона набрала больше, чем таргет плюс
// один ордер запаса, лишние ордера снимаются начиная с самых дальних
// от целевой цены.
func (e *Engine) trimOverTarget(ctx context.Context, c *cycle, side string, sideTotal, sidePrice float64) error {
	orders, err := e.venue.OpenOrders(ctx, c.cfg.Base, c.cfg.Quote)
	if err != nil {
		return fmt.Errorf("failed to get open orders: %w", err)
	}

	sideOrders := orders.Side(side)
	total := orderTotal(sideOrders)
	target := c.sideTarget(sideTotal+c.cfg.OrderAmount, sidePrice)
	orderAmount := c.orderStep(sidePrice)

	e.logger.Info("%s: total = %.8f, target = %.8f", side, total, target)

	if total <= target || orderAmount <= 0 {
		return nil
	}

	difference := total - target
	num := int(math.Floor(difference / orderAmount))
	e.logger.Info("got diff of %.8f, removing %d orders", difference, num)

	if num <= 0 {
		return nil
	}
	if num > len(sideOrders) {
		num = len(sideOrders)
	}

	// ask сортируется по убыванию цены, bid по возрастанию:
	// первыми снимаются ордера, самые дальние от касания
	sorted := make([]domain.OpenOrder, len(sideOrders))
	copy(sorted, sideOrders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if side == domain.SideAsk {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].Price < sorted[j].Price
	})

	for _, order := range sorted[:num] {
		e.logger.Info("cancelling %s order %s over target", side, order.ID)
		if _, err := e.venue.CancelOrder(ctx, order.ID); err != nil {
			e.logger.Error("failed to cancel order %s: %v", order.ID, err)
		}
	}

	return nil
}

// resetOutOfTolerance проход C: ордера, чья цена отъехала от целевой
// дальше tolerance, снимаются и пересаживаются по цене с джиттером.
func (e *Engine) resetOutOfTolerance(ctx context.Context, c *cycle, side string, sidePrice float64) error {
	orders, err := e.venue.OpenOrders(ctx, c.cfg.Base, c.cfg.Quote)
	if err != nil {
		return fmt.Errorf("failed to get open orders: %w", err)
	}

	for _, order := range orders.Side(side) {
		orderTolerance := (math.Max(order.Price, sidePrice) - math.Min(order.Price, sidePrice)) / sidePrice
		e.logger.Debug("got order tolerance of %.8f against %.8f", orderTolerance, sidePrice)

		if orderTolerance > c.cfg.Tolerance {
			e.resetOrder(ctx, c, order.ID, side, sidePrice)
			e.sleep(e.sleepMedium)
		}
	}

	return nil
}

// resetOrder отменяет ордер и ставит замену той же номинальной величины
// по цене с джиттером
func (e *Engine) resetOrder(ctx context.Context, c *cycle, orderID, side string, sidePrice float64) {
	e.logger.Info("resetting order %s", orderID)

	cancelled, err := e.venue.CancelOrder(ctx, orderID)
	if err != nil || !cancelled {
		e.logger.Error("unable to cancel order %s: %v", orderID, err)
		return
	}

	e.sleep(e.sleepShort)

	amount := c.orderStep(sidePrice)
	e.placeOrder(ctx, c, side, sidePrice, amount)
}

// topUpToTarget проход D: добирает сторону до таргета серией ордеров.
// Нехватка средств не ошибка: уходит алерт, план урезается до баланса.
func (e *Engine) topUpToTarget(ctx context.Context, c *cycle, side string, sideTotal, sidePrice float64) error {
	orders, err := e.venue.OpenOrders(ctx, c.cfg.Base, c.cfg.Quote)
	if err != nil {
		return fmt.Errorf("failed to get open orders: %w", err)
	}

	total := orderTotal(orders.Side(side))
	target := c.sideTarget(sideTotal, sidePrice)
	step := c.orderStep(sidePrice)

	e.logger.Info("%s: total = %.8f, target = %.8f, step = %.8f", side, total, target, step)

	if total >= target {
		return nil
	}

	difference := target - total

	currency := c.cfg.Base
	if side == domain.SideAsk {
		currency = c.cfg.Quote
	}

	rawBalance, err := e.venue.Balance(ctx, currency)
	if err != nil {
		return fmt.Errorf("failed to get balance for %s: %w", currency, err)
	}
	if rawBalance == nil {
		return fmt.Errorf("no balance reported for %s", currency)
	}

	balance := c.availableBalance(side, *rawBalance, sidePrice)
	e.logger.Info("got available balance of %.8f", balance)

	if balance < difference {
		e.logger.Warn("not enough funds available to reach target: need %.8f to reach %.8f but only %.4f available",
			difference, target, balance)
		e.alerts.Funds(ctx, alert.FundsAlert{
			BotName:         e.botName,
			Currency:        currency,
			Exchange:        e.exchange,
			TargetAmount:    target,
			AmountOnOrder:   total,
			AmountAvailable: balance,
		})
		difference = balance
	}

	// ордер ровно на весь баланс биржа отклонит по точности,
	// поэтому шаг деградирует до 90% остатка
	if balance < step {
		e.logger.Warn("not enough funds to place a full order")
		step = balance * 0.9
	}

	if step < c.minOrderAmount {
		e.logger.Warn("minimum order amount not reached: %.8f < %.8f", step, c.minOrderAmount)
		return nil
	}

	numOrders := 0
	if step > 0 {
		numOrders = int(math.Ceil(difference / step))
	}

	if numOrders <= 0 {
		return nil
	}

	e.logger.Info("placing %d orders to reach %s target %.8f from %.8f", numOrders, side, target, total)

	for i := 0; i < numOrders; i++ {
		e.placeOrder(ctx, c, side, sidePrice, step)
		e.sleep(e.sleepShort)
	}

	return nil
}

// placeOrder ставит один ордер по цене с джиттером и отчитывается overwatch
func (e *Engine) placeOrder(ctx context.Context, c *cycle, side string, sidePrice, amount float64) {
	jittered := e.jitteredPrice(c, side, sidePrice)

	amount, ok := clipAmount(amount, jittered, c.limits)
	if !ok {
		e.logger.Warn("candidate order %.8f@%.8f violates market limits, skipping", amount, jittered)
		return
	}

	orderType := domain.OrderTypeFor(side)
	orderID, err := e.venue.PlaceOrder(ctx, c.cfg.Base, c.cfg.Quote, orderType, jittered, amount)
	if err != nil {
		e.logger.Error("failed to place %s order: %v", orderType, err)
		return
	}

	e.logger.Info("order placed: %s", orderID)

	if err := e.telemetry.RecordPlacedOrder(ctx, c.cfg.Base, c.cfg.Quote, orderType, jittered, amount); err != nil {
		e.logger.Error("failed to record placed order: %v", err)
	}
}

func orderTotal(orders []domain.OpenOrder) float64 {
	total := 0.0
	for _, order := range orders {
		total += order.Amount
	}
	return total
}
