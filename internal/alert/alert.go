package alert

import "context"

// FundsAlert уведомление о нехватке средств для достижения таргета стороны
type FundsAlert struct {
	BotName         string
	Currency        string
	Exchange        string
	TargetAmount    float64
	AmountOnOrder   float64
	AmountAvailable float64
}

// VenueErrorAlert уведомление об ошибке обёртки биржи
type VenueErrorAlert struct {
	BotName  string
	Exchange string
	Action   string
	Error    string
}

// Sink канал операционных уведомлений. Fire-and-forget:
// реализации логируют свои ошибки и никогда их не поднимают.
type Sink interface {
	Funds(ctx context.Context, a FundsAlert)
	VenueError(ctx context.Context, a VenueErrorAlert)
}

// Multi рассылает алерты во все каналы
type Multi []Sink

func (m Multi) Funds(ctx context.Context, a FundsAlert) {
	for _, sink := range m {
		sink.Funds(ctx, a)
	}
}

func (m Multi) VenueError(ctx context.Context, a VenueErrorAlert) {
	for _, sink := range m {
		sink.VenueError(ctx, a)
	}
}

// Nop заглушка для конфигураций без каналов алертов
type Nop struct{}

func (Nop) Funds(context.Context, FundsAlert)           {}
func (Nop) VenueError(context.Context, VenueErrorAlert) {}
