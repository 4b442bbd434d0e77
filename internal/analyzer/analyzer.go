package analyzer

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"price-alert-sentry/pkg/assets"
	"price-alert-sentry/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Detector 价格变化检测器
// 只保存每个资产上一次的价格，由单个行情连接独占，不加锁
type Detector struct {
	threshold decimal.Decimal
	previous  map[string]decimal.Decimal
	now       func() time.Time
}

// NewDetector 创建检测器，threshold 为百分比
func NewDetector(threshold float64) *Detector {
	return &Detector{
		threshold: decimal.NewFromFloat(threshold),
		previous:  make(map[string]decimal.Decimal),
		now:       time.Now,
	}
}

// Observe 处理一次行情推送，返回触发的预警
func (d *Detector) Observe(update map[string]decimal.Decimal) []*types.AlertEvent {
	ids := make([]string, 0, len(update))
	for id := range update {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var alerts []*types.AlertEvent
	for _, id := range ids {
		if alert := d.observeAsset(id, update[id]); alert != nil {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// observeAsset 分析单个资产，返回预警数据或nil
func (d *Detector) observeAsset(id string, current decimal.Decimal) *types.AlertEvent {
	past, exists := d.previous[id]
	// 无论是否预警都更新上一次价格
	d.previous[id] = current

	// 首次出现或上次价格为0，没有可比较的基准
	if !exists || past.IsZero() {
		return nil
	}

	changePercent := current.Sub(past).Div(past).Mul(hundred)
	if changePercent.Abs().LessThanOrEqual(d.threshold) {
		return nil
	}

	return &types.AlertEvent{
		AssetID:       id,
		Symbol:        assets.Symbol(id),
		Price:         current.Round(2),
		PercentChange: changePercent.Round(2),
		Type:          types.AlertTypePrice,
		AlertTime:     d.now(),
	}
}

// Previous 返回资产上一次记录的价格
func (d *Detector) Previous(id string) (decimal.Decimal, bool) {
	p, ok := d.previous[id]
	return p, ok
}

// Reset 清空价格记录，新连接建立时调用
func (d *Detector) Reset() {
	d.previous = make(map[string]decimal.Decimal)
}

// Threshold 返回预警阈值
func (d *Detector) Threshold() decimal.Decimal {
	return d.threshold
}
