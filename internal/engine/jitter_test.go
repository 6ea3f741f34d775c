package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kirillm/spread-bot/internal/domain"
	"github.com/kirillm/spread-bot/pkg/utils"
)

func jitterEngine(seed int64) *Engine {
	e := New("test-bot", "bittrex", nil, nil, nil, nil, utils.NewLogger("error"), Sleeps{})
	e.rng = rand.New(rand.NewSource(seed))
	e.sleep = func(time.Duration) {}
	return e
}

func TestJitteredPrice_StaysWithinToleranceBand(t *testing.T) {
	const (
		price     = 0.015
		tolerance = 0.01
		samples   = 10000
	)

	cases := []struct {
		name    string
		side    string
		reverse bool
	}{
		{"bid", domain.SideBid, false},
		{"ask", domain.SideAsk, false},
		{"bid reversed", domain.SideBid, true},
		{"ask reversed", domain.SideAsk, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := jitterEngine(42)
			c := &cycle{
				cfg:     &domain.BotConfig{Tolerance: tolerance},
				reverse: tc.reverse,
			}

			low := price * (1 - tolerance)
			high := price * (1 + tolerance)

			for i := 0; i < samples; i++ {
				got := e.jitteredPrice(c, tc.side, price)
				if got < low || got > high {
					t.Fatalf("jitteredPrice() = %v outside [%v, %v]", got, low, high)
				}
			}
		})
	}
}

func TestJitteredPrice_SignConvention(t *testing.T) {
	cfg := &domain.BotConfig{Tolerance: 0.01}
	const price = 1.0

	tests := []struct {
		name    string
		side    string
		reverse bool
		below   bool // джиттер уводит цену вниз
	}{
		{"normal bid goes below", domain.SideBid, false, true},
		{"normal ask goes above", domain.SideAsk, false, false},
		{"reversed bid goes above", domain.SideBid, true, false},
		{"reversed ask goes below", domain.SideAsk, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := jitterEngine(7)
			c := &cycle{cfg: cfg, reverse: tt.reverse}

			for i := 0; i < 1000; i++ {
				got := e.jitteredPrice(c, tt.side, price)
				if tt.below && got > price {
					t.Fatalf("jitteredPrice() = %v, want <= %v", got, price)
				}
				if !tt.below && got < price {
					t.Fatalf("jitteredPrice() = %v, want >= %v", got, price)
				}
			}
		})
	}
}

func TestTriangular_Range(t *testing.T) {
	e := jitterEngine(3)

	for i := 0; i < 10000; i++ {
		got := e.triangular(0, 0.02)
		if got < 0 || got > 0.02 {
			t.Fatalf("triangular() = %v outside [0, 0.02]", got)
		}
	}
}

func TestTriangular_ZeroWidth(t *testing.T) {
	e := jitterEngine(3)
	if got := e.triangular(0, 0); got != 0 {
		t.Errorf("triangular(0, 0) = %v, want 0", got)
	}
}
