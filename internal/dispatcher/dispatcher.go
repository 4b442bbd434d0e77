package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"price-alert-sentry/internal/notifier"
	"price-alert-sentry/internal/pricefeed"
	"price-alert-sentry/internal/storage"
	"price-alert-sentry/pkg/types"
)

const defaultQueueSize = 100

// Dispatcher 接收行情回调并异步分发给通知器
// OnAlert/OnError 只入队或记录，不阻塞行情协程
type Dispatcher struct {
	notifiers []notifier.Interface
	history   *storage.NotificationStore
	alerts    chan *types.AlertEvent
	dropped   atomic.Int64
}

func NewDispatcher(history *storage.NotificationStore, queueSize int, notifiers ...notifier.Interface) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		notifiers: notifiers,
		history:   history,
		alerts:    make(chan *types.AlertEvent, queueSize),
	}
}

// OnAlert 预警入队，队列满时丢弃
func (d *Dispatcher) OnAlert(alert *types.AlertEvent) {
	select {
	case d.alerts <- alert:
	default:
		d.dropped.Add(1)
		zap.L().Warn("预警队列已满，丢弃预警", zap.String("asset", alert.AssetID))
	}
}

// OnError 记录行情连接错误
func (d *Dispatcher) OnError(err error) {
	title := "Feed Error"
	if errors.Is(err, pricefeed.ErrReconnectExhausted) {
		title = "Feed Stopped"
		zap.L().Error("❌ 行情订阅已停止", zap.Error(err))
	} else {
		zap.L().Warn("⚠️ 行情连接错误", zap.Error(err))
	}

	d.history.Add(types.Notification{
		Title:   title,
		Message: err.Error(),
		Type:    types.AlertTypeFeedError,
	})
}

// Dropped 因队列满而丢弃的预警数
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Start 分发循环，ctx 取消后发送完已入队的预警再返回
func (d *Dispatcher) Start(ctx context.Context) {
	zap.L().Info("🚀 预警分发器启动", zap.Int("notifiers", len(d.notifiers)))

	for {
		select {
		case <-ctx.Done():
			if batch := d.drain(nil); len(batch) > 0 {
				d.deliver(batch)
			}
			zap.L().Info("📴 预警分发器已停止")
			return
		case alert := <-d.alerts:
			d.deliver(d.drain([]*types.AlertEvent{alert}))
		}
	}
}

// drain 取出当前队列中的全部预警
func (d *Dispatcher) drain(batch []*types.AlertEvent) []*types.AlertEvent {
	for {
		select {
		case alert := <-d.alerts:
			batch = append(batch, alert)
		default:
			return batch
		}
	}
}

func (d *Dispatcher) deliver(alerts []*types.AlertEvent) {
	for _, n := range d.notifiers {
		sendBatchAlerts(n, alerts)
	}
	for _, alert := range alerts {
		d.history.Add(types.Notification{
			Title:     "Price Alert",
			Message:   notifier.FormatMessage(alert),
			Type:      alert.Type,
			Timestamp: alert.AlertTime,
		})
	}
}

// sendBatchAlerts 单个预警直接发送，多个预警批量发送，批量失败时降级为逐条发送
func sendBatchAlerts(n notifier.Interface, alerts []*types.AlertEvent) {
	if len(alerts) == 1 {
		if err := n.SendAlert(alerts[0]); err != nil {
			zap.L().Error("❌ 发送预警失败", zap.String("asset", alerts[0].AssetID), zap.Error(err))
		}
		return
	}

	if err := n.SendBatchAlerts(alerts); err != nil {
		zap.L().Error("❌ 批量发送预警失败，降级为逐条发送", zap.Error(err))
		for _, alert := range alerts {
			if singleErr := n.SendAlert(alert); singleErr != nil {
				zap.L().Error("❌ 单个预警发送失败", zap.String("asset", alert.AssetID), zap.Error(singleErr))
			}
		}
	}
}
