package price

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

// Resolver выводит референсную цену пары из peg-топологии конфигурации.
// Кеш котировок живёт внутри одного вызова Resolve и выбрасывается:
// между циклами ничего не переиспользуется.
type Resolver struct {
	feed   Feed
	logger *utils.Logger
}

func NewResolver(feed Feed, logger *utils.Logger) *Resolver {
	return &Resolver{
		feed:   feed,
		logger: logger,
	}
}

// Resolve вычисляет референсную цену для конфигурации пары.
// Ровно одна из четырёх топологий применима:
//
//	peg == quote:               price = 1 / (quote / base)
//	peg == base:                price = base / quote
//	peg отдельный, side quote:  price = base / peg
//	peg отдельный, side base:   price = peg / quote
//
// Если топология не совпала или какой-то фид вернул пусто,
// возвращается domain.ErrNoPrice — не нулевая цена.
func (r *Resolver) Resolve(ctx context.Context, cfg *domain.BotConfig) (float64, error) {
	rates := map[string]*float64{}

	lookup := func(currency string) *float64 {
		key := strings.ToUpper(currency)
		if key == "USD" {
			one := 1.0
			return &one
		}
		if cached, ok := rates[key]; ok {
			return cached
		}
		value, err := r.feed.Price(ctx, currency)
		if err != nil {
			r.logger.Error("price feed failed for %s: %v", currency, err)
			value = nil
		}
		rates[key] = value
		return value
	}

	peg := strings.ToUpper(cfg.Peg)
	base := strings.ToUpper(cfg.Base)
	quote := strings.ToUpper(cfg.Quote)

	switch {
	case peg == quote:
		basePrice := lookup(cfg.Base)
		quotePrice := lookup(cfg.Quote)
		if basePrice == nil || quotePrice == nil || *basePrice == 0 {
			return 0, domain.ErrNoPrice
		}
		return 1 / (*quotePrice / *basePrice), nil

	case peg == base:
		basePrice := lookup(cfg.Base)
		quotePrice := lookup(cfg.Quote)
		if basePrice == nil || quotePrice == nil || *quotePrice == 0 {
			return 0, domain.ErrNoPrice
		}
		return *basePrice / *quotePrice, nil

	case cfg.PegSide == "quote":
		basePrice := lookup(cfg.Base)
		pegPrice := lookup(cfg.Peg)
		if basePrice == nil || pegPrice == nil || *pegPrice == 0 {
			return 0, domain.ErrNoPrice
		}
		return *basePrice / *pegPrice, nil

	case cfg.PegSide == "base":
		pegPrice := lookup(cfg.Peg)
		quotePrice := lookup(cfg.Quote)
		if pegPrice == nil || quotePrice == nil || *quotePrice == 0 {
			return 0, domain.ErrNoPrice
		}
		return *pegPrice / *quotePrice, nil
	}

	return 0, fmt.Errorf("%w: no peg topology matches %s/%s peg %s side %q",
		domain.ErrNoPrice, cfg.Base, cfg.Quote, cfg.Peg, cfg.PegSide)
}
