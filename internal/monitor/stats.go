package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"price-alert-sentry/pkg/types"
)

const defaultReportInterval = 5 * time.Minute

// AlertMonitor 预警统计监控器
type AlertMonitor struct {
	reportInterval time.Duration
	now            func() time.Time

	mu      sync.Mutex
	metrics *Metrics
}

// Metrics 运行指标
type Metrics struct {
	StartTime      time.Time                `json:"start_time"`
	TotalAlerts    int64                    `json:"total_alerts"`
	RiseAlerts     int64                    `json:"rise_alerts"`
	FallAlerts     int64                    `json:"fall_alerts"`
	FeedErrors     int64                    `json:"feed_errors"`
	AlertFrequency float64                  `json:"alert_frequency"` // 预警/小时
	AssetStats     map[string]*AssetMetrics `json:"asset_stats"`
	LastErrorTime  time.Time                `json:"last_error_time,omitempty"`
	LastError      string                   `json:"last_error,omitempty"`
}

// AssetMetrics 单个资产的预警指标
type AssetMetrics struct {
	AssetID         string          `json:"asset_id"`
	Symbol          string          `json:"symbol"`
	TotalAlerts     int             `json:"total_alerts"`
	RiseAlerts      int             `json:"rise_alerts"`
	FallAlerts      int             `json:"fall_alerts"`
	MaxAbsChange    decimal.Decimal `json:"max_abs_change"`
	LastAlertTime   time.Time       `json:"last_alert_time"`
	LastAlertPrice  decimal.Decimal `json:"last_alert_price"`
	LastAlertChange decimal.Decimal `json:"last_alert_change"`
}

// NewAlertMonitor 创建监控器，reportInterval<=0 时使用默认5分钟
func NewAlertMonitor(reportInterval time.Duration) *AlertMonitor {
	if reportInterval <= 0 {
		reportInterval = defaultReportInterval
	}
	m := &AlertMonitor{
		reportInterval: reportInterval,
		now:            time.Now,
	}
	m.metrics = &Metrics{
		StartTime:  m.now(),
		AssetStats: make(map[string]*AssetMetrics),
	}
	return m
}

// RecordAlert 统计一条价格预警
func (m *AlertMonitor) RecordAlert(alert *types.AlertEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.metrics.AssetStats[alert.AssetID]
	if stats == nil {
		stats = &AssetMetrics{AssetID: alert.AssetID, Symbol: alert.Symbol}
		m.metrics.AssetStats[alert.AssetID] = stats
	}

	m.metrics.TotalAlerts++
	stats.TotalAlerts++
	if alert.IsRise() {
		m.metrics.RiseAlerts++
		stats.RiseAlerts++
	} else {
		m.metrics.FallAlerts++
		stats.FallAlerts++
	}

	if abs := alert.PercentChange.Abs(); abs.GreaterThan(stats.MaxAbsChange) {
		stats.MaxAbsChange = abs
	}
	stats.LastAlertTime = alert.AlertTime
	stats.LastAlertPrice = alert.Price
	stats.LastAlertChange = alert.PercentChange
}

// RecordError 统计一次行情连接错误
func (m *AlertMonitor) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.FeedErrors++
	m.metrics.LastError = err.Error()
	m.metrics.LastErrorTime = m.now()
}

// Start 启动定时报告，ctx 取消后退出
func (m *AlertMonitor) Start(ctx context.Context) {
	zap.L().Info("📊 启动预警统计监控器", zap.Duration("interval", m.reportInterval))

	ticker := time.NewTicker(m.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.generateReport()
			return
		case <-ticker.C:
			m.generateReport()
		}
	}
}

// GetMetrics 获取指标快照
func (m *AlertMonitor) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *m.metrics
	snapshot.AssetStats = make(map[string]*AssetMetrics, len(m.metrics.AssetStats))
	for id, stats := range m.metrics.AssetStats {
		copied := *stats
		snapshot.AssetStats[id] = &copied
	}

	// 计算预警频率（预警/小时）
	if runTime := m.now().Sub(snapshot.StartTime).Hours(); runTime > 0 {
		snapshot.AlertFrequency = float64(snapshot.TotalAlerts) / runTime
	}
	return snapshot
}

// GetMetricsJSON 获取JSON格式的指标
func (m *AlertMonitor) GetMetricsJSON() (string, error) {
	metrics := m.GetMetrics()
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *AlertMonitor) generateReport() {
	metrics := m.GetMetrics()

	zap.L().Info("📈 预警统计报告",
		zap.Duration("run_time", m.now().Sub(metrics.StartTime)),
		zap.Int64("total_alerts", metrics.TotalAlerts),
		zap.Int64("rise_alerts", metrics.RiseAlerts),
		zap.Int64("fall_alerts", metrics.FallAlerts),
		zap.Int64("feed_errors", metrics.FeedErrors),
		zap.Float64("alert_frequency", metrics.AlertFrequency))

	for _, stats := range sortedAssets(metrics.AssetStats) {
		zap.L().Info("📊 资产预警",
			zap.String("asset", stats.AssetID),
			zap.Int("total_alerts", stats.TotalAlerts),
			zap.Int("rise_alerts", stats.RiseAlerts),
			zap.Int("fall_alerts", stats.FallAlerts),
			zap.String("max_abs_change", stats.MaxAbsChange.StringFixed(2)),
			zap.Time("last_alert_time", stats.LastAlertTime))
	}
}

// PrintFormattedReport 打印格式化报告
func (m *AlertMonitor) PrintFormattedReport(w io.Writer) {
	metrics := m.GetMetrics()

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "📈 价格预警统计")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "🕐 运行时间: %s\n", m.now().Sub(metrics.StartTime).Truncate(time.Second))
	fmt.Fprintf(w, "🎯 预警总数: %d\n", metrics.TotalAlerts)
	fmt.Fprintf(w, "📈 上涨预警: %d\n", metrics.RiseAlerts)
	fmt.Fprintf(w, "📉 下跌预警: %d\n", metrics.FallAlerts)
	fmt.Fprintf(w, "⚠️ 连接错误: %d\n", metrics.FeedErrors)
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, stats := range sortedAssets(metrics.AssetStats) {
		fmt.Fprintf(w, "💹 %s: %d次 最大波动 %s%% 最近: %s\n",
			stats.Symbol,
			stats.TotalAlerts,
			stats.MaxAbsChange.StringFixed(2),
			stats.LastAlertTime.Format("01-02 15:04"))
	}

	fmt.Fprintln(w, strings.Repeat("=", 60)+"\n")
}

// sortedAssets 按预警次数降序，次数相同按资产ID排序
func sortedAssets(stats map[string]*AssetMetrics) []*AssetMetrics {
	list := make([]*AssetMetrics, 0, len(stats))
	for _, s := range stats {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalAlerts != list[j].TotalAlerts {
			return list[i].TotalAlerts > list[j].TotalAlerts
		}
		return list[i].AssetID < list[j].AssetID
	})
	return list
}
