package engine

import (
	"context"

	"github.com/kirillm/spread-bot/internal/domain"
)

// reportBalances считает доступные и замороженные в ордерах балансы
// и отправляет их в overwatch. Для отображения обе стороны приводятся
// к Nu-эквиваленту; без цены (stop, нет цены) отчёт уходит в сырых
// биржевых единицах.
func (e *Engine) reportBalances(ctx context.Context, cfg *domain.BotConfig, reverse bool, price *float64) {
	e.logger.Info("reporting balances")

	orders, err := e.venue.OpenOrders(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		e.logger.Error("failed to get totals on order when reporting balances: %v", err)
		return
	}

	bidOnOrder := orderTotal(orders.Bid)
	askOnOrder := orderTotal(orders.Ask)

	bidBalance := 0.0
	if raw, err := e.venue.Balance(ctx, cfg.Base); err != nil || raw == nil {
		e.logger.Error("failed to get bid balance for %s: %v", cfg.Base, err)
	} else {
		bidBalance = *raw
	}

	askBalance := 0.0
	if raw, err := e.venue.Balance(ctx, cfg.Quote); err != nil || raw == nil {
		e.logger.Error("failed to get ask balance for %s: %v", cfg.Quote, err)
	} else {
		askBalance = *raw
	}

	if price != nil && *price > 0 {
		if !reverse {
			// base-валюта не Nu, приводим к учётной единице
			bidBalance = toCanonical(bidBalance, *price)
		} else {
			// quote-валюта не Nu: и баланс, и суммы в ордерах
			askBalance = fromCanonical(askBalance, *price)
			bidOnOrder = fromCanonical(bidOnOrder, *price)
			askOnOrder = fromCanonical(askOnOrder, *price)
		}
	}

	err = e.telemetry.RecordBalances(ctx, &domain.Balance{
		Unit:         cfg.Quote,
		BidAvailable: bidBalance,
		AskAvailable: askBalance,
		BidOnOrder:   bidOnOrder,
		AskOnOrder:   askOnOrder,
	})
	if err != nil {
		e.logger.Error("failed to record balances: %v", err)
	}
}

// reportTrades отправляет сделки новее последней известной overwatch.
// Сделки идут от новых к старым; id от overwatch служит эксклюзивной
// границей.
func (e *Engine) reportTrades(ctx context.Context, cfg *domain.BotConfig) {
	e.logger.Info("getting trades")

	lastTradeID, err := e.telemetry.GetLastTradeID(ctx)
	if err != nil {
		e.logger.Error("failed to get last trade id: %v", err)
		return
	}

	trades, err := e.venue.Trades(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		e.logger.Error("failed to get trades: %v", err)
		return
	}

	for i := range trades {
		if trades[i].ID == lastTradeID {
			break
		}
		if err := e.telemetry.RecordTrade(ctx, &trades[i]); err != nil {
			e.logger.Error("failed to record trade %s: %v", trades[i].ID, err)
		}
	}
}
