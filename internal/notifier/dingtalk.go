package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"price-alert-sentry/pkg/types"
)

// 每个分组最多显示的条数
const maxBatchShow = 8

// DingTalkNotifier 钉钉机器人通知器
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	fallback   Interface
	now        func() time.Time
}

// DingTalkMessage 钉钉消息结构
type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

// DingTalkResponse 钉钉API响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewDingTalkNotifier 创建钉钉通知器，secret 为空时不加签
func NewDingTalkNotifier(webhookURL, secret string, timeout time.Duration) *DingTalkNotifier {
	if secret == "" {
		zap.L().Warn("⚠️ 钉钉通知已配置，但未设置secret（建议配置加签验证）")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   NewConsoleNotifier(),
		now:        time.Now,
	}
}

func (dtn *DingTalkNotifier) SendAlert(alert *types.AlertEvent) error {
	title := fmt.Sprintf("📈 价格预警 - %s", alert.Symbol)
	if err := dtn.send(title, dtn.buildMarkdownContent(alert)); err != nil {
		zap.L().Warn("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendAlert(alert)
	}

	zap.L().Info("✅ 钉钉通知已发送", zap.String("message", FormatMessage(alert)))
	return nil
}

func (dtn *DingTalkNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}
	if len(alerts) == 1 {
		return dtn.SendAlert(alerts[0])
	}

	title := fmt.Sprintf("📊 批量价格预警 - %d个资产", len(alerts))
	if err := dtn.send(title, dtn.buildBatchMarkdownContent(alerts)); err != nil {
		zap.L().Warn("❌ 钉钉批量发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ 钉钉批量通知已发送", zap.Int("count", len(alerts)))
	return nil
}

// sign 生成钉钉加签: base64(HmacSHA256(timestamp + "\n" + secret))
func (dtn *DingTalkNotifier) sign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)
	h := hmac.New(sha256.New, []byte(dtn.secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildSignedURL 构建带签名的URL
func (dtn *DingTalkNotifier) buildSignedURL() string {
	if dtn.secret == "" {
		return dtn.webhookURL
	}

	timestamp := dtn.now().UnixMilli()
	separator := "&"
	if !strings.Contains(dtn.webhookURL, "?") {
		separator = "?"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		dtn.webhookURL, separator, timestamp, url.QueryEscape(dtn.sign(timestamp)))
}

func (dtn *DingTalkNotifier) buildMarkdownContent(alert *types.AlertEvent) string {
	arrow, color, changeText := "📈", "green", "上涨"
	if !alert.IsRise() {
		arrow, color, changeText = "📉", "red", "下跌"
	}

	return fmt.Sprintf(`## %s 价格预警触发

**资产**: [%s](%s)
**当前价格**: $%s
**价格变化**: <font color="%s">%s</font>
**预警时间**: %s

> %s 该资产出现显著%s，请关注市场动向！`,
		arrow,
		alert.Symbol, assetURL(alert.AssetID),
		alert.Price.StringFixed(2),
		color, signedPercent(alert),
		alert.AlertTime.Format("2006-01-02 15:04:05"),
		arrow, changeText)
}

func (dtn *DingTalkNotifier) buildBatchMarkdownContent(alerts []*types.AlertEvent) string {
	up, down := splitByDirection(alerts)

	var b strings.Builder
	fmt.Fprintf(&b, `## 🚨 批量价格预警触发

📈 上涨: <font color="green">%d个</font>
📉 下跌: <font color="red">%d个</font>
🕐 预警时间: %s

`, len(up), len(down), alerts[0].AlertTime.Format("2006-01-02 15:04:05"))

	writeGroup := func(name, arrow, color string, group []*types.AlertEvent) {
		if len(group) == 0 {
			return
		}
		fmt.Fprintf(&b, "**%s %s**:\n", arrow, name)
		for i, alert := range group {
			if i == maxBatchShow {
				fmt.Fprintf(&b, "- ... 还有%d个%s资产\n", len(group)-maxBatchShow, name)
				break
			}
			fmt.Fprintf(&b, "- %s **[%s](%s)**: $%s (<font color=\"%s\">%s</font>)\n",
				arrow, alert.Symbol, assetURL(alert.AssetID), alert.Price.StringFixed(2), color, signedPercent(alert))
		}
		b.WriteString("\n")
	}
	writeGroup("上涨", "📈", "green", up)
	writeGroup("下跌", "📉", "red", down)

	b.WriteString("> ⚠️ 多个资产同时出现显著波动，请密切关注市场动向！")
	return b.String()
}

func (dtn *DingTalkNotifier) send(title, content string) error {
	message := &DingTalkMessage{
		MsgType: "markdown",
		Markdown: &DingTalkMarkdown{
			Title: title,
			Text:  content,
		},
		At: &DingTalkAt{AtAll: false},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	resp, err := dtn.httpClient.Post(dtn.buildSignedURL(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if dingResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误 [%d]: %s", dingResp.ErrCode, dingResp.ErrMsg)
	}
	return nil
}
