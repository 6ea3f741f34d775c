package engine

import "github.com/kirillm/spread-bot/internal/domain"

// Конверсии единиц перевёрнутой пары. На перевёрнутой паре биржа считает
// количества в quote-валюте, а учёт ведётся в Nu-эквиваленте: деление на
// цену переводит в учётную единицу, умножение возвращает в биржевую.

// toCanonical переводит биржевое количество в учётную единицу
func toCanonical(amount, price float64) float64 {
	return amount / price
}

// fromCanonical переводит учётное количество обратно в биржевое
func fromCanonical(amount, price float64) float64 {
	return amount * price
}

// sideTarget переводит номинальный таргет стороны в биржевые единицы
func (c *cycle) sideTarget(total, price float64) float64 {
	if c.reverse {
		return toCanonical(total, price)
	}
	return total
}

// orderStep переводит номинал одного ордера в биржевые единицы
func (c *cycle) orderStep(price float64) float64 {
	if c.reverse {
		return toCanonical(c.cfg.OrderAmount, price)
	}
	return c.cfg.OrderAmount
}

// availableBalance приводит доступный баланс стороны к единицам,
// в которых считаются таргет и шаг
func (c *cycle) availableBalance(side string, balance, price float64) float64 {
	if side == domain.SideBid && !c.reverse {
		return toCanonical(balance, price)
	}
	if side == domain.SideAsk && c.reverse {
		return fromCanonical(balance, price)
	}
	return balance
}

// clipAmount проверяет и подрезает кандидата по лимитам пары.
// false означает, что ордер ставить нельзя.
func clipAmount(amount, price float64, limits *domain.MarketLimits) (float64, bool) {
	if limits == nil {
		return amount, true
	}

	if limits.MaxAmount > 0 && amount > limits.MaxAmount {
		amount = limits.MaxAmount
	}
	if limits.MinAmount > 0 && amount < limits.MinAmount {
		return amount, false
	}

	cost := amount * price
	if limits.MaxCost > 0 && cost > limits.MaxCost {
		amount = limits.MaxCost / price
	}
	if limits.MinCost > 0 && amount*price < limits.MinCost {
		return amount, false
	}

	if limits.MinPrice > 0 && price < limits.MinPrice {
		return amount, false
	}
	if limits.MaxPrice > 0 && price > limits.MaxPrice {
		return amount, false
	}

	return amount, true
}
