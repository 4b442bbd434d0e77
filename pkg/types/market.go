package types

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AlertTypePrice 价格预警
	AlertTypePrice = "price_alert"
	// AlertTypeFeedError 行情连接错误
	AlertTypeFeedError = "feed_error"
)

// AlertEvent 价格预警事件，产生后立即交给回调，不做持久化
type AlertEvent struct {
	AssetID       string          `json:"asset_id"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`          // 保留两位小数
	PercentChange decimal.Decimal `json:"percent_change"` // 保留两位小数
	Type          string          `json:"type"`
	AlertTime     time.Time       `json:"alert_time"`
}

// IsRise 是否为上涨
func (a *AlertEvent) IsRise() bool {
	return a.PercentChange.IsPositive()
}

// Notification 通知历史记录
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
