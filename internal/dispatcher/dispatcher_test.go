package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"price-alert-sentry/internal/notifier/mocks"
	"price-alert-sentry/internal/pricefeed"
	"price-alert-sentry/internal/storage"
	"price-alert-sentry/pkg/types"
)

func alert(id, symbol, price, change string) *types.AlertEvent {
	return &types.AlertEvent{
		AssetID:       id,
		Symbol:        symbol,
		Price:         decimal.RequireFromString(price),
		PercentChange: decimal.RequireFromString(change),
		Type:          types.AlertTypePrice,
		AlertTime:     time.Now(),
	}
}

// run 启动分发循环，返回停止函数，停止后所有发送均已完成
func run(d *Dispatcher) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestDispatcher_SingleAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockInterface(ctrl)
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 10, n)

	a := alert("bitcoin", "BTC", "102", "1.59")
	n.EXPECT().SendAlert(a).Return(nil)

	stop := run(d)
	d.OnAlert(a)
	require.Eventually(t, func() bool { return history.Len() == 1 }, time.Second, time.Millisecond)
	stop()

	items := history.List()
	assert.Equal(t, "Price Alert", items[0].Title)
	assert.Equal(t, "BTC: 102.00 (+1.59%)", items[0].Message)
	assert.Equal(t, types.AlertTypePrice, items[0].Type)
}

func TestDispatcher_QueuedAlertsSentAsBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockInterface(ctrl)
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 10, n)

	for i := 0; i < 3; i++ {
		d.OnAlert(alert(fmt.Sprintf("asset%d", i), "AAA", "1", "2"))
	}
	n.EXPECT().SendBatchAlerts(gomock.Len(3)).Return(nil)

	stop := run(d)
	require.Eventually(t, func() bool { return history.Len() == 3 }, time.Second, time.Millisecond)
	stop()
}

func TestDispatcher_BatchFailureFallsBackToSingles(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockInterface(ctrl)
	healthy := mocks.NewMockInterface(ctrl)
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 10, failing, healthy)

	d.OnAlert(alert("bitcoin", "BTC", "102", "1.59"))
	d.OnAlert(alert("ethereum", "ETH", "48.12", "-3.75"))

	failing.EXPECT().SendBatchAlerts(gomock.Len(2)).Return(errors.New("webhook down"))
	failing.EXPECT().SendAlert(gomock.Any()).Return(nil).Times(2)
	healthy.EXPECT().SendBatchAlerts(gomock.Len(2)).Return(nil)

	stop := run(d)
	require.Eventually(t, func() bool { return history.Len() == 2 }, time.Second, time.Millisecond)
	stop()
}

func TestDispatcher_FlushesQueueOnStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockInterface(ctrl)
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 10, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := alert("bitcoin", "BTC", "102", "1.59")
	d.OnAlert(a)

	// ctx 已取消时，两个分支都可能被选中，最终都会发送
	n.EXPECT().SendAlert(a).Return(nil)
	d.Start(ctx)

	assert.Equal(t, 1, history.Len())
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 1)

	d.OnAlert(alert("bitcoin", "BTC", "102", "1.59"))
	d.OnAlert(alert("ethereum", "ETH", "48.12", "-3.75"))

	assert.EqualValues(t, 1, d.Dropped())
}

func TestDispatcher_OnErrorRecordsFeedError(t *testing.T) {
	history := storage.NewNotificationStore(10)
	d := NewDispatcher(history, 1)

	d.OnError(&pricefeed.TransportError{Op: "读取", Err: errors.New("reset")})
	d.OnError(fmt.Errorf("%w (共尝试5次)", pricefeed.ErrReconnectExhausted))

	items := history.List()
	require.Len(t, items, 2)
	assert.Equal(t, "Feed Stopped", items[0].Title)
	assert.Equal(t, types.AlertTypeFeedError, items[0].Type)
	assert.Equal(t, "Feed Error", items[1].Title)
	assert.Contains(t, items[1].Message, "reset")
}
