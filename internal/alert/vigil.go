package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillm/spread-bot/pkg/utils"
)

// Vigil отправляет алерты в каналы сервиса vigil.
// Каналов два: нехватка средств и ошибки обёртки биржи.
type Vigil struct {
	baseURL             string
	fundsChannelID      string
	wrapperErrorChannel string
	client              *http.Client
	logger              *utils.Logger
}

func NewVigil(baseURL, fundsChannelID, wrapperErrorChannel string, logger *utils.Logger) *Vigil {
	return &Vigil{
		baseURL:             strings.TrimRight(baseURL, "/"),
		fundsChannelID:      fundsChannelID,
		wrapperErrorChannel: wrapperErrorChannel,
		client:              &http.Client{Timeout: 30 * time.Second},
		logger:              logger,
	}
}

func (v *Vigil) Funds(ctx context.Context, a FundsAlert) {
	data := url.Values{}
	data.Set("bot_name", a.BotName)
	data.Set("currency", a.Currency)
	data.Set("exchange", a.Exchange)
	data.Set("target_amount", strconv.FormatFloat(a.TargetAmount, 'f', -1, 64))
	data.Set("amount_on_order", strconv.FormatFloat(a.AmountOnOrder, 'f', -1, 64))
	data.Set("amount_available", strconv.FormatFloat(a.AmountAvailable, 'f', -1, 64))
	v.send(ctx, v.fundsChannelID, data)
}

func (v *Vigil) VenueError(ctx context.Context, a VenueErrorAlert) {
	data := url.Values{}
	data.Set("bot_name", a.BotName)
	data.Set("exchange", a.Exchange)
	data.Set("action", a.Action)
	data.Set("error", a.Error)
	v.send(ctx, v.wrapperErrorChannel, data)
}

// send отправляет алерт в канал. Ошибки только логируются.
func (v *Vigil) send(ctx context.Context, channelID string, data url.Values) {
	if channelID == "" {
		return
	}

	req, err := http.NewRequestWithContext(
		ctx, "POST",
		fmt.Sprintf("%s/alert/%s", v.baseURL, channelID),
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		v.logger.Error("failed to create vigil request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("failed to reach vigil: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Error("vigil gave a bad response code: %d", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		v.logger.Error("failed to read vigil response: %v", err)
		return
	}

	var response struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		v.logger.Error("vigil did not return valid JSON: %s", string(body))
		return
	}

	if !response.Success {
		v.logger.Error("vigil did not report a success: %s", string(body))
		return
	}

	v.logger.Info("successfully alerted channel %s through vigil", channelID)
}
