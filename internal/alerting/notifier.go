package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"whalewatch/internal/alert"
)

// Notification 封装一条已入库的巨鲸买入告警。
type Notification struct {
	MessageID     string
	ObservedAt    time.Time
	WhaleLabel    string
	TokenSymbol   string
	BuyAmountUSD  decimal.Decimal
	MarketCapUSD  decimal.Decimal
	SourceURL     string
	Reporter      string
	ChannelID     string
	AdditionalMsg string
}

// NotificationFromMessage builds a notification from a stored message.
// Messages whose fields cannot be extracted are relayed as raw text.
func NotificationFromMessage(msg alert.RawAlertMessage) Notification {
	note := Notification{
		MessageID:  msg.ID,
		ObservedAt: msg.Timestamp,
		Reporter:   msg.Author,
		ChannelID:  msg.ChannelID,
	}
	activity, ok := alert.Extract(msg.Content)
	if !ok {
		note.AdditionalMsg = msg.Content
		return note
	}
	note.WhaleLabel = activity.WhaleLabel
	note.TokenSymbol = activity.TokenSymbol
	note.BuyAmountUSD = decimal.NewFromFloat(activity.BuyAmountUSD)
	note.MarketCapUSD = decimal.NewFromFloat(activity.MarketCapUSD)
	note.SourceURL = activity.SourceURL
	return note
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Relay forwards a stored whale alert to the configured chat.
func (n *TelegramNotifier) Relay(ctx context.Context, msg alert.RawAlertMessage) error {
	return n.Notify(ctx, NotificationFromMessage(msg))
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("message_id", note.MessageID).
		Str("token", note.TokenSymbol).
		Str("channel", note.ChannelID).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Whale Alert]\n")
	if !note.ObservedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", note.ObservedAt.UTC().Format(time.RFC3339)))
	}
	if note.TokenSymbol != "" {
		builder.WriteString(fmt.Sprintf("Whale: %s\n", note.WhaleLabel))
		builder.WriteString(fmt.Sprintf("Bought: $%s of $%s\n", note.BuyAmountUSD.StringFixedBank(0), note.TokenSymbol))
		builder.WriteString(fmt.Sprintf("Market cap: $%s\n", note.MarketCapUSD.StringFixedBank(0)))
	}
	if note.SourceURL != "" {
		builder.WriteString(fmt.Sprintf("Source: %s\n", note.SourceURL))
	}
	if note.Reporter != "" {
		builder.WriteString(fmt.Sprintf("Reporter: %s\n", note.Reporter))
	}
	if note.ChannelID != "" {
		builder.WriteString(fmt.Sprintf("Channel: %s\n", note.ChannelID))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
