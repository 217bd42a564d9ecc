package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"kzz_crawler/market"
	"kzz_crawler/models"
)

// Notifier delivers a rendered digest to whoever is watching.
type Notifier interface {
	Send(ctx context.Context, content string) error
}

// FeishuNotifier posts text messages to a Feishu custom bot webhook.
type FeishuNotifier struct {
	client  *resty.Client
	webhook string
}

func NewFeishuNotifier(webhook string, timeout time.Duration) *FeishuNotifier {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &FeishuNotifier{client: client, webhook: webhook}
}

type feishuText struct {
	Text string `json:"text"`
}

type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Content feishuText `json:"content"`
}

func (n *FeishuNotifier) Send(ctx context.Context, content string) error {
	res, err := n.client.R().
		SetContext(ctx).
		SetBody(feishuMessage{MsgType: "text", Content: feishuText{Text: content}}).
		Post(n.webhook)
	if err != nil {
		return fmt.Errorf("feishu: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("feishu: status %d: %s", res.StatusCode(), truncate(res.String(), 200))
	}

	// the bot answers 200 with a non-zero code for rejected messages
	if code := gjson.GetBytes(res.Body(), "code"); code.Exists() && code.Int() != 0 {
		return fmt.Errorf("feishu: code %d: %s", code.Int(), gjson.GetBytes(res.Body(), "msg").String())
	}
	return nil
}

// LogNotifier writes digests to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, content string) error {
	log.Printf("[notify] %s", content)
	return nil
}

// New picks the Feishu notifier when a webhook is configured.
func New(webhook string, timeout time.Duration) Notifier {
	if webhook == "" {
		return LogNotifier{}
	}
	return NewFeishuNotifier(webhook, timeout)
}

// FormatDigest renders qualifying bonds as one message, headed by the
// timestamp and the current median price.
func FormatDigest(now time.Time, median *float64, rows []models.AlertRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] 当前中位数: %s", now.In(market.Location()).Format("2006/01/02 15:04:05"), number(median))

	for _, r := range rows {
		b.WriteByte('\n')
		b.WriteString(formatRow(r))
	}
	return b.String()
}

func formatRow(r models.AlertRow) string {
	parts := make([]string, 0, 4)
	parts = append(parts, "现价: "+number(r.Price))
	if r.TargetPrice != nil && *r.TargetPrice != 0 {
		parts = append(parts, "目标价: "+number(r.TargetPrice))
	}
	if r.SellPrice != nil && *r.SellPrice != 0 {
		parts = append(parts, "卖出价: "+number(r.SellPrice))
	}

	level := ""
	if r.Level != nil {
		level = models.SafetyLevel(*r.Level)
	}
	parts = append(parts, fmt.Sprintf("涨跌幅: %s%% |%s| %s", number(r.IncreaseRt), r.ProfitStrategy, level))

	return fmt.Sprintf("%s %s(%s)", shortName(r.BondName), r.BondID, strings.Join(parts, ", "))
}

func shortName(name string) string {
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}

func number(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromFloat(*v).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
