package engine

import (
	"math"

	"github.com/kirillm/spread-bot/internal/domain"
)

// triangular возвращает выборку из треугольного распределения на [low, high]
// с модой в середине интервала, как random.triangular в питоне
func (e *Engine) triangular(low, high float64) float64 {
	u := e.rng.Float64()
	d := high - low
	if d <= 0 {
		return low
	}
	if u < 0.5 {
		return low + d*math.Sqrt(u/2)
	}
	return high - d*math.Sqrt((1-u)/2)
}

// jitteredPrice смещает цену ордера на случайный джиттер в пределах
// tolerance, чтобы котировки не выстраивались в ровную, легко читаемую
// стенку.
//
// Знак смещения параметризован флагом reverse пары: на обычной паре
// покупка уходит ниже цены, продажа выше; на перевёрнутой наоборот.
// Итог всегда лежит в [price*(1-tolerance), price*(1+tolerance)].
func (e *Engine) jitteredPrice(c *cycle, side string, price float64) float64 {
	jitter := e.triangular(0, c.cfg.Tolerance) * price

	buy := side == domain.SideBid
	if c.reverse {
		if buy {
			return price + jitter
		}
		return price - jitter
	}
	if buy {
		return price - jitter
	}
	return price + jitter
}
