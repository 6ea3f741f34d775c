package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Feed источник спотовых USD-цен. Любой запрос может вернуть (nil, nil):
// отсутствие цены это не ошибка транспорта, а отсутствие данных.
type Feed interface {
	Price(ctx context.Context, currency string) (*float64, error)
}

// AggregatorFeed получает цены из сервиса price-aggregator
type AggregatorFeed struct {
	baseURL string
	client  *http.Client
}

type aggregatorResponse struct {
	MovingAverages     map[string]json.Number `json:"moving_averages"`
	AggregatedUSDPrice json.Number            `json:"aggregated_usd_price"`
	USDPrice           json.Number            `json:"usd_price"`
}

func NewAggregatorFeed(baseURL string) *AggregatorFeed {
	return &AggregatorFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Price возвращает 30-минутную скользящую среднюю цены валюты в USD,
// с откатом на aggregated_usd_price и usd_price
func (f *AggregatorFeed) Price(ctx context.Context, currency string) (*float64, error) {
	url := fmt.Sprintf("%s/price/%s", f.baseURL, currency)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var data aggregatorResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, nil
	}

	raw := data.MovingAverages["30_minute"]
	if raw == "" {
		raw = data.AggregatedUSDPrice
	}
	if raw == "" {
		raw = data.USDPrice
	}
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return nil, nil
	}

	return &value, nil
}
