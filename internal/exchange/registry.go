package exchange

import (
	"fmt"
	"strings"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/config"
	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

// Factory собирает gateway конкретной биржи
type Factory func(cfg config.VenueConfig, botName string, alerts alert.Sink, logger *utils.Logger) Gateway

// Реестр реализаций. Выбор биржи происходит один раз при старте,
// по имени из конфигурации.
var factories = map[string]Factory{
	domain.VenueBittrex: func(cfg config.VenueConfig, botName string, alerts alert.Sink, logger *utils.Logger) Gateway {
		return NewBittrexClient(cfg, botName, alerts, logger)
	},
}

// New возвращает gateway для указанной биржи
func New(venue string, cfg config.VenueConfig, botName string, alerts alert.Sink, logger *utils.Logger) (Gateway, error) {
	factory, ok := factories[strings.ToLower(venue)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVenue, venue)
	}
	return factory(cfg, botName, alerts, logger), nil
}
