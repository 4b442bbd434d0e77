package notifier

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"price-alert-sentry/pkg/types"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks price-alert-sentry/internal/notifier Interface

// Interface 通知接口
type Interface interface {
	SendAlert(alert *types.AlertEvent) error
	SendBatchAlerts(alerts []*types.AlertEvent) error
}

// FormatMessage 单行预警文本，如 "BTC: 102.00 (+1.59%)"
func FormatMessage(alert *types.AlertEvent) string {
	sign := ""
	if !alert.PercentChange.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("%s: %s (%s%s%%)",
		alert.Symbol, alert.Price.StringFixed(2), sign, alert.PercentChange.StringFixed(2))
}

// assetURL 资产详情页链接
func assetURL(assetID string) string {
	return "https://coincap.io/assets/" + assetID
}

// splitByDirection 分离上涨和下跌，按波动幅度从大到小排序
func splitByDirection(alerts []*types.AlertEvent) (up, down []*types.AlertEvent) {
	for _, alert := range alerts {
		if alert.IsRise() {
			up = append(up, alert)
		} else {
			down = append(down, alert)
		}
	}
	sort.Slice(up, func(i, j int) bool {
		return up[i].PercentChange.GreaterThan(up[j].PercentChange)
	})
	sort.Slice(down, func(i, j int) bool {
		return down[i].PercentChange.LessThan(down[j].PercentChange) // 负数，越小跌幅越大
	})
	return up, down
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	padding := totalWidth - utf8.RuneCountInString(content) - 2
	if padding < 0 {
		padding = 0
	}
	return padding
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier 输出到标准输出
func NewConsoleNotifier() *ConsoleNotifier {
	return NewConsoleNotifierTo(os.Stdout)
}

// NewConsoleNotifierTo 输出到指定Writer
func NewConsoleNotifierTo(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (cn *ConsoleNotifier) SendAlert(alert *types.AlertEvent) error {
	return cn.printBox("🚨 价格预警触发！", []string{
		fmt.Sprintf("资产: %s (%s)", alert.Symbol, alert.AssetID),
		fmt.Sprintf("当前价格: $%s", alert.Price.StringFixed(2)),
		fmt.Sprintf("价格变化: %s", signedPercent(alert)),
		fmt.Sprintf("预警时间: %s", alert.AlertTime.Format("2006-01-02 15:04:05")),
	})
}

func (cn *ConsoleNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}
	if len(alerts) == 1 {
		return cn.SendAlert(alerts[0])
	}

	up, down := splitByDirection(alerts)
	lines := []string{fmt.Sprintf("📈 上涨: %d个  📉 下跌: %d个", len(up), len(down))}
	for i, alert := range up {
		lines = append(lines, fmt.Sprintf("  %d. 📈 %s", i+1, FormatMessage(alert)))
	}
	for i, alert := range down {
		lines = append(lines, fmt.Sprintf("  %d. 📉 %s", i+1, FormatMessage(alert)))
	}
	lines = append(lines, fmt.Sprintf("预警时间: %s", alerts[0].AlertTime.Format("2006-01-02 15:04:05")))

	return cn.printBox(fmt.Sprintf("🚨 批量价格预警触发！- %d个资产", len(alerts)), lines)
}

func (cn *ConsoleNotifier) printBox(title string, lines []string) error {
	const width = 60
	var b strings.Builder
	b.WriteString("\n╔" + strings.Repeat("═", width) + "╗\n")
	for _, line := range append([]string{title, ""}, lines...) {
		b.WriteString("║ " + line + strings.Repeat(" ", safePadding(line, width)) + " ║\n")
	}
	b.WriteString("╚" + strings.Repeat("═", width) + "╝\n")
	_, err := io.WriteString(cn.out, b.String())
	return err
}

func signedPercent(alert *types.AlertEvent) string {
	if !alert.PercentChange.IsNegative() {
		return "+" + alert.PercentChange.StringFixed(2) + "%"
	}
	return alert.PercentChange.StringFixed(2) + "%"
}
