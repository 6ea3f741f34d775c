package engine

import (
	"math"
	"testing"

	"github.com/kirillm/spread-bot/internal/domain"
)

func TestConversionRoundTrip(t *testing.T) {
	prices := []float64{0.00042, 0.015, 1, 250, 8431.5}
	amounts := []float64{0.1, 1, 99.99, 12345.678}

	for _, price := range prices {
		for _, amount := range amounts {
			got := fromCanonical(toCanonical(amount, price), price)
			if math.Abs(got-amount) > amount*1e-12 {
				t.Errorf("round trip of %v at price %v = %v", amount, price, got)
			}
		}
	}
}

func TestSideTargetAndStep(t *testing.T) {
	tests := []struct {
		name       string
		reverse    bool
		total      float64
		price      float64
		wantTarget float64
		wantStep   float64
	}{
		{"normal pair keeps units", false, 500, 0.5, 500, 100},
		{"reversed pair divides by price", true, 500, 0.5, 1000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cycle{
				cfg:     &domain.BotConfig{OrderAmount: 100},
				reverse: tt.reverse,
			}
			if got := c.sideTarget(tt.total, tt.price); got != tt.wantTarget {
				t.Errorf("sideTarget() = %v, want %v", got, tt.wantTarget)
			}
			if got := c.orderStep(tt.price); got != tt.wantStep {
				t.Errorf("orderStep() = %v, want %v", got, tt.wantStep)
			}
		})
	}
}

func TestAvailableBalance(t *testing.T) {
	tests := []struct {
		name    string
		side    string
		reverse bool
		balance float64
		price   float64
		want    float64
	}{
		{"bid normal converts to canonical", domain.SideBid, false, 100, 0.5, 200},
		{"ask normal stays raw", domain.SideAsk, false, 100, 0.5, 100},
		{"bid reversed stays raw", domain.SideBid, true, 100, 0.5, 100},
		{"ask reversed converts from canonical", domain.SideAsk, true, 100, 0.5, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cycle{cfg: &domain.BotConfig{}, reverse: tt.reverse}
			if got := c.availableBalance(tt.side, tt.balance, tt.price); got != tt.want {
				t.Errorf("availableBalance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClipAmount(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		price      float64
		limits     domain.MarketLimits
		wantAmount float64
		wantOK     bool
	}{
		{"no limits pass through", 100, 1, domain.MarketLimits{}, 100, true},
		{"below min amount rejected", 0.5, 1, domain.MarketLimits{MinAmount: 1}, 0.5, false},
		{"above max amount clipped", 100, 1, domain.MarketLimits{MaxAmount: 50}, 50, true},
		{"below min cost rejected", 10, 0.001, domain.MarketLimits{MinCost: 1}, 10, false},
		{"price outside band rejected", 10, 5, domain.MarketLimits{MaxPrice: 2}, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := clipAmount(tt.amount, tt.price, &tt.limits)
			if ok != tt.wantOK {
				t.Fatalf("clipAmount() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.wantAmount {
				t.Errorf("clipAmount() = %v, want %v", got, tt.wantAmount)
			}
		})
	}
}
