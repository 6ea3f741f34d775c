package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/config"
	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/internal/engine"
	"github.com/kirillm/spread-bot/internal/exchange"
	"github.com/kirillm/spread-bot/internal/overwatch"
	"github.com/kirillm/spread-bot/internal/price"
	"github.com/kirillm/spread-bot/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel).WithPrefix(cfg.BotName)

	sinks := alert.Multi{
		alert.NewVigil(
			cfg.Vigil.BaseURL,
			cfg.Vigil.FundsChannelID,
			cfg.Vigil.WrapperErrorChannel,
			logger,
		),
	}

	if cfg.Telegram.BotToken != "" {
		telegram, err := alert.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			log.Fatalf("failed to create telegram sink: %v", err)
		}
		sinks = append(sinks, telegram)
	}

	venue, err := exchange.New(cfg.Exchange, cfg.Venue, cfg.BotName, sinks, logger)
	if err != nil {
		log.Fatalf("failed to create venue gateway: %v", err)
	}

	telemetry := overwatch.NewClient(
		cfg.Overwatch.BaseURL,
		cfg.Overwatch.APISecret,
		cfg.BotName,
		cfg.Exchange,
		logger,
	)

	resolver := price.NewResolver(price.NewAggregatorFeed(cfg.Price.AggregatorURL), logger)

	bot := engine.New(
		cfg.BotName,
		cfg.Exchange,
		venue,
		resolver,
		telemetry,
		sinks,
		logger,
		engine.Sleeps{
			Short:  cfg.SleepShort,
			Medium: cfg.SleepMedium,
			Long:   cfg.SleepLong,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("spread bot started for %s@%s (interval: %v)", cfg.BotName, cfg.Exchange, cfg.CycleInterval)

	runCycle(ctx, bot, logger)

	ticker := time.NewTicker(cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, bot, logger)
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		}
	}
}

// runCycle изолирует плохой цикл: ошибка логируется,
// планировщик просто ждёт следующего тика
func runCycle(ctx context.Context, bot *engine.Engine, logger *utils.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := bot.RunCycle(ctx); err != nil {
		if errors.Is(err, domain.ErrNoPrice) {
			logger.Warn("cycle ended early: %v", err)
			return
		}
		logger.Error("cycle failed: %v", err)
	}
}
