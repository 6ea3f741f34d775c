package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/kirillm/spread-bot/internal/alert"
	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

// fakeGateway стейтфул-заглушка биржи: размещения и отмены
// применяются к книге, чтобы проверять идемпотентность циклов
type fakeGateway struct {
	bids      []domain.OpenOrder
	asks      []domain.OpenOrder
	balances  map[string]float64
	trades    []domain.Trade
	limits    domain.MarketLimits
	lastPrice *float64

	cancelled    []string
	placed       []placedOrder
	cancelledAll int
	nextID       int
}

type placedOrder struct {
	orderType string
	price     float64
	amount    float64
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, base, quote, orderType string, price, amount float64) (string, error) {
	f.nextID++
	id := fmt.Sprintf("order-%d", f.nextID)
	order := domain.OpenOrder{ID: id, Price: price, Amount: amount}
	if orderType == domain.OrderTypeSell {
		f.asks = append(f.asks, order)
	} else {
		f.bids = append(f.bids, order)
	}
	f.placed = append(f.placed, placedOrder{orderType, price, amount})
	return id, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, id string) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	f.bids = removeOrder(f.bids, id)
	f.asks = removeOrder(f.asks, id)
	return true, nil
}

func removeOrder(orders []domain.OpenOrder, id string) []domain.OpenOrder {
	out := orders[:0]
	for _, order := range orders {
		if order.ID != id {
			out = append(out, order)
		}
	}
	return out
}

func (f *fakeGateway) OpenOrders(ctx context.Context, base, quote string) (*domain.OpenOrders, error) {
	return &domain.OpenOrders{
		Bid: append([]domain.OpenOrder{}, f.bids...),
		Ask: append([]domain.OpenOrder{}, f.asks...),
	}, nil
}

func (f *fakeGateway) Balance(ctx context.Context, currency string) (*float64, error) {
	balance, ok := f.balances[currency]
	if !ok {
		return nil, nil
	}
	return &balance, nil
}

func (f *fakeGateway) Trades(ctx context.Context, base, quote string) ([]domain.Trade, error) {
	return f.trades, nil
}

func (f *fakeGateway) MarketLimits(ctx context.Context, base, quote string) (*domain.MarketLimits, error) {
	return &f.limits, nil
}

func (f *fakeGateway) LastPrice(ctx context.Context, base, quote string) (*float64, error) {
	return f.lastPrice, nil
}

func (f *fakeGateway) CancelAllOrders(ctx context.Context, base, quote string) error {
	f.cancelledAll++
	f.bids = nil
	f.asks = nil
	return nil
}

type fakeTelemetry struct {
	cfg         *domain.BotConfig
	cfgErr      error
	prices      []*domain.ReferencePrice
	balances    []*domain.Balance
	placed      []placedOrder
	trades      []*domain.Trade
	lastTradeID string
}

func (f *fakeTelemetry) GetConfig(ctx context.Context) (*domain.BotConfig, error) {
	return f.cfg, f.cfgErr
}

func (f *fakeTelemetry) RecordPrice(ctx context.Context, prices *domain.ReferencePrice) error {
	f.prices = append(f.prices, prices)
	return nil
}

func (f *fakeTelemetry) RecordBalances(ctx context.Context, balance *domain.Balance) error {
	f.balances = append(f.balances, balance)
	return nil
}

func (f *fakeTelemetry) RecordPlacedOrder(ctx context.Context, base, quote, orderType string, price, amount float64) error {
	f.placed = append(f.placed, placedOrder{orderType, price, amount})
	return nil
}

func (f *fakeTelemetry) GetLastTradeID(ctx context.Context) (string, error) {
	return f.lastTradeID, nil
}

func (f *fakeTelemetry) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	f.trades = append(f.trades, trade)
	return nil
}

type fakeResolver struct {
	price float64
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, cfg *domain.BotConfig) (float64, error) {
	return f.price, f.err
}

type fakeSink struct {
	funds       []alert.FundsAlert
	venueErrors []alert.VenueErrorAlert
}

func (f *fakeSink) Funds(ctx context.Context, a alert.FundsAlert) {
	f.funds = append(f.funds, a)
}

func (f *fakeSink) VenueError(ctx context.Context, a alert.VenueErrorAlert) {
	f.venueErrors = append(f.venueErrors, a)
}

func testConfig() *domain.BotConfig {
	return &domain.BotConfig{
		Base:        "NBT",
		Quote:       "BTC",
		Track:       "NBT",
		Peg:         "USD",
		PegSide:     "quote",
		Tolerance:   0.01,
		OrderAmount: 100,
		TotalBid:    500,
		TotalAsk:    0,
	}
}

func newTestEngine(gw *fakeGateway, tm *fakeTelemetry, resolver Resolver, sink alert.Sink) *Engine {
	e := New("test-bot", "bittrex", gw, resolver, tm, sink, utils.NewLogger("error"), Sleeps{})
	e.rng = rand.New(rand.NewSource(1))
	e.sleep = func(time.Duration) {}
	return e
}

func TestRunCycle_StopCancelsEverything(t *testing.T) {
	gw := &fakeGateway{
		bids:     []domain.OpenOrder{{ID: "b1", Price: 0.995, Amount: 100}},
		balances: map[string]float64{"NBT": 100, "BTC": 1},
	}
	cfg := testConfig()
	cfg.Stop = true
	tm := &fakeTelemetry{cfg: cfg}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if gw.cancelledAll != 1 {
		t.Errorf("CancelAllOrders called %d times, want 1", gw.cancelledAll)
	}
	if len(gw.placed) != 0 {
		t.Errorf("placed %d orders, want 0", len(gw.placed))
	}
	if len(tm.balances) != 1 {
		t.Errorf("recorded %d balance reports, want 1", len(tm.balances))
	}
	if len(tm.prices) != 0 {
		t.Errorf("recorded %d price reports, want 0", len(tm.prices))
	}
}

func TestRunCycle_NoPriceCancelsAndExits(t *testing.T) {
	gw := &fakeGateway{
		bids:     []domain.OpenOrder{{ID: "b1", Price: 0.995, Amount: 100}},
		balances: map[string]float64{"NBT": 100, "BTC": 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}

	e := newTestEngine(gw, tm, &fakeResolver{err: domain.ErrNoPrice}, &fakeSink{})
	err := e.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrNoPrice) {
		t.Fatalf("RunCycle() error = %v, want ErrNoPrice", err)
	}

	if gw.cancelledAll != 1 {
		t.Errorf("CancelAllOrders called %d times, want 1", gw.cancelledAll)
	}
	if len(gw.placed) != 0 {
		t.Errorf("placed %d orders, want 0", len(gw.placed))
	}
	if len(tm.balances) != 1 {
		t.Errorf("recorded %d balance reports, want 1", len(tm.balances))
	}
}

func TestRunCycle_TopUpPlacesMissingOrders(t *testing.T) {
	// сторона bid набрала 300 из 500 в пределах tolerance:
	// difference = 200, ceil(200/100) = 2 ордера по 100
	gw := &fakeGateway{
		bids: []domain.OpenOrder{
			{ID: "b1", Price: 0.995, Amount: 150},
			{ID: "b2", Price: 0.998, Amount: 150},
		},
		balances: map[string]float64{"NBT": 1000, "BTC": 1},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(gw.cancelled) != 0 {
		t.Errorf("cancelled %v, want none", gw.cancelled)
	}
	if len(gw.placed) != 2 {
		t.Fatalf("placed %d orders, want 2", len(gw.placed))
	}
	for _, placed := range gw.placed {
		if placed.orderType != domain.OrderTypeBuy {
			t.Errorf("placed order type = %s, want buy", placed.orderType)
		}
		if placed.amount != 100 {
			t.Errorf("placed order amount = %v, want 100", placed.amount)
		}
	}
	if len(tm.placed) != 2 {
		t.Errorf("recorded %d placed orders, want 2", len(tm.placed))
	}
}

func TestRunCycle_Idempotent(t *testing.T) {
	// первый цикл снимает протухший bid и добирает таргет;
	// второй цикл против неизменной книги ничего не трогает
	gw := &fakeGateway{
		bids: []domain.OpenOrder{
			{ID: "b1", Price: 0.995, Amount: 150},
			{ID: "b2", Price: 1.2, Amount: 100}, // пересекает спред
			{ID: "b3", Price: 0.998, Amount: 150},
		},
		balances: map[string]float64{"NBT": 1000, "BTC": 1},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("first RunCycle() error = %v", err)
	}

	if len(gw.cancelled) != 1 || gw.cancelled[0] != "b2" {
		t.Fatalf("first cycle cancelled %v, want [b2]", gw.cancelled)
	}
	if len(gw.placed) != 2 {
		t.Fatalf("first cycle placed %d orders, want 2", len(gw.placed))
	}

	cancelledAfterFirst := len(gw.cancelled)
	placedAfterFirst := len(gw.placed)

	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("second RunCycle() error = %v", err)
	}

	if len(gw.cancelled) != cancelledAfterFirst {
		t.Errorf("second cycle cancelled %v", gw.cancelled[cancelledAfterFirst:])
	}
	if len(gw.placed) != placedAfterFirst {
		t.Errorf("second cycle placed %d extra orders", len(gw.placed)-placedAfterFirst)
	}
}

func TestRunCycle_InsufficientFundsAlertsAndClips(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]float64{"NBT": 100, "BTC": 0},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}
	sink := &fakeSink{}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, sink)
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(sink.funds) != 1 {
		t.Fatalf("got %d funds alerts, want 1", len(sink.funds))
	}
	a := sink.funds[0]
	if a.Currency != "NBT" || a.TargetAmount != 500 || a.AmountOnOrder != 0 || a.AmountAvailable != 100 {
		t.Errorf("unexpected funds alert: %+v", a)
	}

	// difference урезан до баланса: один ордер на полный шаг
	if len(gw.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(gw.placed))
	}
	if gw.placed[0].amount != 100 {
		t.Errorf("placed amount = %v, want 100", gw.placed[0].amount)
	}
}

func TestRunCycle_DegradedStepNeverUsesFullBalance(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]float64{"NBT": 50, "BTC": 0},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}
	sink := &fakeSink{}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, sink)
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	// balance 50 < step 100: шаг деградирует до 45.
	// ceil(50/45) = 2 ордера, план считается от урезанного difference,
	// а не от остатка баланса, второй ордер отклонит сама биржа
	if len(gw.placed) != 2 {
		t.Fatalf("placed %d orders, want 2", len(gw.placed))
	}
	for _, placed := range gw.placed {
		if placed.amount != 45 {
			t.Errorf("placed amount = %v, want 45", placed.amount)
		}
	}
}

func TestRunCycle_BelowMinimumSkipsPlacement(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]float64{"NBT": 0.5, "BTC": 0},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	tm := &fakeTelemetry{cfg: testConfig()}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(gw.placed) != 0 {
		t.Errorf("placed %d orders below minimum, want 0", len(gw.placed))
	}
}

func TestRunCycle_ToleranceResetReplacesOrder(t *testing.T) {
	gw := &fakeGateway{
		bids: []domain.OpenOrder{
			{ID: "b1", Price: 0.9, Amount: 100}, // 10% от цены, tolerance 1%
		},
		balances: map[string]float64{"NBT": 1000, "BTC": 1},
		limits:   domain.MarketLimits{MinAmount: 1},
	}
	cfg := testConfig()
	cfg.TotalBid = 100
	tm := &fakeTelemetry{cfg: cfg}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(gw.cancelled) != 1 || gw.cancelled[0] != "b1" {
		t.Fatalf("cancelled %v, want [b1]", gw.cancelled)
	}
	if len(gw.placed) == 0 {
		t.Fatal("no replacement placed")
	}
	replacement := gw.placed[0]
	if replacement.amount != 100 {
		t.Errorf("replacement amount = %v, want 100", replacement.amount)
	}
	if replacement.price < 0.99 || replacement.price > 1.01 {
		t.Errorf("replacement price %v outside tolerance band", replacement.price)
	}
}

func TestRunCycle_ReportsNewTradesOnly(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]float64{"NBT": 0, "BTC": 0},
		trades: []domain.Trade{
			{ID: "t3", Type: "buy"},
			{ID: "t2", Type: "sell"},
			{ID: "t1", Type: "buy"},
		},
	}
	cfg := testConfig()
	cfg.TotalBid = 0
	tm := &fakeTelemetry{cfg: cfg, lastTradeID: "t2"}

	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})
	if err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(tm.trades) != 1 {
		t.Fatalf("recorded %d trades, want 1", len(tm.trades))
	}
	if tm.trades[0].ID != "t3" {
		t.Errorf("recorded trade %s, want t3", tm.trades[0].ID)
	}
}

func TestTrimOverTarget_RemovesFurthestFromTouch(t *testing.T) {
	tests := []struct {
		name       string
		side       string
		orders     []domain.OpenOrder
		sideTotal  float64
		wantCancel []string
	}{
		{
			"ask removes highest price first",
			domain.SideAsk,
			[]domain.OpenOrder{
				{ID: "a1", Price: 1.01, Amount: 100},
				{ID: "a2", Price: 1.05, Amount: 100},
				{ID: "a3", Price: 1.02, Amount: 100},
			},
			50,
			[]string{"a2"},
		},
		{
			"bid removes lowest price first",
			domain.SideBid,
			[]domain.OpenOrder{
				{ID: "b1", Price: 0.99, Amount: 100},
				{ID: "b2", Price: 0.95, Amount: 100},
				{ID: "b3", Price: 0.97, Amount: 100},
			},
			50,
			[]string{"b2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			if tt.side == domain.SideAsk {
				gw.asks = tt.orders
			} else {
				gw.bids = tt.orders
			}
			tm := &fakeTelemetry{}
			e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})

			c := &cycle{cfg: testConfig(), reverse: false}
			if err := e.trimOverTarget(context.Background(), c, tt.side, tt.sideTotal, 1.0); err != nil {
				t.Fatalf("trimOverTarget() error = %v", err)
			}

			if len(gw.cancelled) != len(tt.wantCancel) {
				t.Fatalf("cancelled %v, want %v", gw.cancelled, tt.wantCancel)
			}
			for i := range tt.wantCancel {
				if gw.cancelled[i] != tt.wantCancel[i] {
					t.Errorf("cancelled[%d] = %s, want %s", i, gw.cancelled[i], tt.wantCancel[i])
				}
			}
		})
	}
}

func TestTrimOverTarget_NeverRemovesMoreThanExists(t *testing.T) {
	gw := &fakeGateway{
		asks: []domain.OpenOrder{{ID: "a1", Price: 1.01, Amount: 1000}},
	}
	tm := &fakeTelemetry{}
	e := newTestEngine(gw, tm, &fakeResolver{price: 1}, &fakeSink{})

	c := &cycle{cfg: testConfig(), reverse: false}
	if err := e.trimOverTarget(context.Background(), c, domain.SideAsk, 0, 1.0); err != nil {
		t.Fatalf("trimOverTarget() error = %v", err)
	}

	if len(gw.cancelled) > 1 {
		t.Errorf("cancelled %d orders, only 1 exists", len(gw.cancelled))
	}
}
