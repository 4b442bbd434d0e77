package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"price-alert-sentry/pkg/types"
)

const pushPlusEndpoint = "http://www.pushplus.plus/send"

// PushPlusNotifier PushPlus通知器
type PushPlusNotifier struct {
	userToken  string
	to         string
	endpoint   string
	httpClient *http.Client
	fallback   Interface
}

type PushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type PushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

// NewPushPlusNotifier 创建PushPlus通知器，发送失败时降级为控制台输出
func NewPushPlusNotifier(userToken, to string, timeout time.Duration) *PushPlusNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushPlusNotifier{
		userToken:  userToken,
		to:         to,
		endpoint:   pushPlusEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   NewConsoleNotifier(),
	}
}

func (ppn *PushPlusNotifier) SendAlert(alert *types.AlertEvent) error {
	title := fmt.Sprintf("📈 价格预警 - %s", alert.Symbol)
	if err := ppn.send(title, ppn.buildHTMLContent(alert)); err != nil {
		zap.L().Warn("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		return ppn.fallback.SendAlert(alert)
	}

	zap.L().Info("✅ PushPlus通知已发送", zap.String("message", FormatMessage(alert)))
	return nil
}

func (ppn *PushPlusNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}
	if len(alerts) == 1 {
		return ppn.SendAlert(alerts[0])
	}

	title := fmt.Sprintf("📊 批量价格预警 - %d个资产", len(alerts))
	if err := ppn.send(title, ppn.buildBatchHTMLContent(alerts)); err != nil {
		zap.L().Warn("❌ PushPlus批量发送失败，降级为控制台输出", zap.Error(err))
		return ppn.fallback.SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ PushPlus批量通知已发送", zap.Int("count", len(alerts)))
	return nil
}

func (ppn *PushPlusNotifier) buildHTMLContent(alert *types.AlertEvent) string {
	arrow, color, changeText := "📈", "#00C851", "上涨"
	if !alert.IsRise() {
		arrow, color, changeText = "📉", "#FF4444", "下跌"
	}

	return fmt.Sprintf(`
<div style="border: 2px solid %s; border-radius: 10px; padding: 20px; margin: 10px;">
    <h2 style="color: %s; text-align: center; margin-top: 0;">%s 价格预警触发</h2>
    <p><strong>资产:</strong> <a href="%s" target="_blank">%s</a></p>
    <p><strong>当前价格:</strong> $%s</p>
    <p><strong>价格变化:</strong> <span style="font-weight: bold; color: %s;">%s</span></p>
    <p><strong>预警时间:</strong> %s</p>
    <p style="color: %s;"><strong>💡 该资产出现显著%s，请关注市场动向！</strong></p>
</div>
`,
		color, color, arrow,
		assetURL(alert.AssetID), alert.Symbol,
		alert.Price.StringFixed(2),
		color, signedPercent(alert),
		alert.AlertTime.Format("2006-01-02 15:04:05"),
		color, changeText)
}

func (ppn *PushPlusNotifier) buildBatchHTMLContent(alerts []*types.AlertEvent) string {
	up, down := splitByDirection(alerts)

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>🚨 批量价格预警 - %d个资产</h2>\n", len(alerts))
	fmt.Fprintf(&b, "<p>📈 上涨: %d个 📉 下跌: %d个</p>\n<ul>\n", len(up), len(down))
	for _, alert := range up {
		fmt.Fprintf(&b, `<li>📈 <a href="%s">%s</a> <span style="color: #00C851;">%s</span></li>`+"\n",
			assetURL(alert.AssetID), alert.Symbol, FormatMessage(alert))
	}
	for _, alert := range down {
		fmt.Fprintf(&b, `<li>📉 <a href="%s">%s</a> <span style="color: #FF4444;">%s</span></li>`+"\n",
			assetURL(alert.AssetID), alert.Symbol, FormatMessage(alert))
	}
	b.WriteString("</ul>\n")
	fmt.Fprintf(&b, "<p>预警时间: %s</p>", alerts[0].AlertTime.Format("2006-01-02 15:04:05"))
	return b.String()
}

func (ppn *PushPlusNotifier) send(title, content string) error {
	reqData := PushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %w", err)
	}

	resp, err := ppn.httpClient.Post(ppn.endpoint, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var pushResp PushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}
	return nil
}
