package pricefeed

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// SimulatedDialer 离线模拟行情，按固定间隔推送随机游走价格
type SimulatedDialer struct {
	Interval   time.Duration
	Volatility float64 // 单次最大波动百分比，默认5
	Seed       int64   // 0 表示使用当前时间
}

// Dial 创建模拟连接，资产取自地址中的 assets 参数
func (d *SimulatedDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	volatility := d.Volatility
	if volatility <= 0 {
		volatility = 5
	}

	rng := rand.New(rand.NewSource(seed))
	ids := assetsFromURL(rawURL)
	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		prices[id] = rng.Float64()*50000 + 100
	}

	return &simConn{
		ids:        ids,
		prices:     prices,
		rng:        rng,
		volatility: volatility,
		ticker:     time.NewTicker(interval),
		closed:     make(chan struct{}),
	}, nil
}

type simConn struct {
	ids        []string
	prices     map[string]float64
	rng        *rand.Rand
	volatility float64
	ticker     *time.Ticker
	closed     chan struct{}
	closeOnce  sync.Once
}

func (c *simConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	case <-c.ticker.C:
	}

	update := make(map[string]string, len(c.ids))
	for _, id := range c.ids {
		change := (c.rng.Float64()*2 - 1) * c.volatility / 100
		c.prices[id] *= 1 + change
		update[id] = decimal.NewFromFloat(c.prices[id]).StringFixed(8)
	}
	return json.Marshal(update)
}

func (c *simConn) Close() error {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.closed)
	})
	return nil
}
