package pricefeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"price-alert-sentry/pkg/types"
)

type step struct {
	data []byte
	err  error
}

func msg(s string) step { return step{data: []byte(s)} }

func closeWith(code int) step { return step{err: &websocket.CloseError{Code: code}} }

// fakeConn 按脚本返回消息，脚本读完后阻塞到被关闭
type fakeConn struct {
	mu     sync.Mutex
	steps  []step
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(steps ...step) *fakeConn {
	return &fakeConn{steps: steps, closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	if len(c.steps) > 0 {
		s := c.steps[0]
		c.steps = c.steps[1:]
		c.mu.Unlock()
		return s.data, s.err
	}
	c.mu.Unlock()

	<-c.closed
	return nil, errors.New("use of closed network connection")
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer 统计拨号次数，第n次拨号交给 dial 决定结果
type fakeDialer struct {
	dials atomic.Int32
	dial  func(ctx context.Context, n int) (Conn, error)
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	n := int(d.dials.Add(1))
	return d.dial(ctx, n)
}

func scripted(conns ...*fakeConn) *fakeDialer {
	return &fakeDialer{dial: func(_ context.Context, n int) (Conn, error) {
		if n > len(conns) {
			return nil, errors.New("no more scripted connections")
		}
		return conns[n-1], nil
	}}
}

type recorder struct {
	mu     sync.Mutex
	alerts []*types.AlertEvent
	errs   []error
}

func (r *recorder) onAlert(a *types.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() ([]*types.AlertEvent, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.AlertEvent(nil), r.alerts...), append([]error(nil), r.errs...)
}

func (r *recorder) count(target error) int {
	_, errs := r.snapshot()
	n := 0
	for _, err := range errs {
		if errors.Is(err, target) {
			n++
		}
	}
	return n
}

func options(d Dialer) Options {
	return Options{
		Endpoint:             "wss://feed.test/prices",
		Threshold:            0.5,
		MaxReconnectAttempts: 3,
		ReconnectInterval:    time.Millisecond,
		Dialer:               d,
	}
}

func start(t *testing.T, opts Options, rec *recorder, ids ...string) *Connection {
	t.Helper()
	c, err := Start(context.Background(), opts, ids, rec.onAlert, rec.onError)
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c
}

func waitDone(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not stop, state=%s", c.State())
	}
}

func TestStart_RequiresAssets(t *testing.T) {
	_, err := Start(context.Background(), options(scripted()), []string{" ", ""}, nil, nil)
	assert.ErrorIs(t, err, ErrNoAssets)
}

func TestStart_BuildsURLWithAssets(t *testing.T) {
	rec := &recorder{}
	c := start(t, options(scripted(newFakeConn(closeWith(websocket.CloseNormalClosure)))), rec, "bitcoin", "ethereum", "bitcoin")
	waitDone(t, c)

	assert.Equal(t, "wss://feed.test/prices?assets=bitcoin,ethereum", c.URL())
}

func TestConnection_ExampleSequence(t *testing.T) {
	rec := &recorder{}
	dialer := scripted(newFakeConn(
		msg(`{"bitcoin":"100.00"}`),
		msg(`{"bitcoin":"100.40"}`),
		msg(`{"bitcoin":"102.00"}`),
		closeWith(websocket.CloseNormalClosure),
	))
	c := start(t, options(dialer), rec, "bitcoin")
	waitDone(t, c)

	alerts, errs := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, "BTC", alerts[0].Symbol)
	assert.True(t, alerts[0].PercentChange.Equal(decimal.RequireFromString("1.59")))
	assert.True(t, alerts[0].Price.Equal(decimal.RequireFromString("102")))
	assert.Empty(t, errs)
	assert.Equal(t, StateClosedNormal, c.State())
	assert.EqualValues(t, 1, dialer.dials.Load())
}

func TestConnection_MalformedMessagesAreSwallowed(t *testing.T) {
	rec := &recorder{}
	dialer := scripted(newFakeConn(
		msg(`{"bitcoin":"100"}`),
		msg(`not json`),
		msg(`{"bitcoin":"abc"}`),
		msg(`["bitcoin"]`),
		msg(`{"bitcoin":"110"}`),
		closeWith(websocket.CloseNormalClosure),
	))
	c := start(t, options(dialer), rec, "bitcoin")
	waitDone(t, c)

	alerts, errs := rec.snapshot()
	assert.Len(t, alerts, 1)
	assert.Empty(t, errs)
}

func TestConnection_GivesUpAfterMaxAttempts(t *testing.T) {
	rec := &recorder{}
	dialer := &fakeDialer{dial: func(context.Context, int) (Conn, error) {
		return nil, errors.New("connection refused")
	}}
	c := start(t, options(dialer), rec, "bitcoin")
	waitDone(t, c)

	assert.Equal(t, StateGaveUp, c.State())
	assert.Equal(t, 1, rec.count(ErrReconnectExhausted))
	// 首次连接 + 3次重连
	assert.EqualValues(t, 4, dialer.dials.Load())

	var te *TransportError
	_, errs := rec.snapshot()
	require.NotEmpty(t, errs)
	assert.ErrorAs(t, errs[0], &te)

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 4, dialer.dials.Load())
	assert.Equal(t, 1, rec.count(ErrReconnectExhausted))
}

func TestConnection_SuccessfulOpenResetsAttempts(t *testing.T) {
	rec := &recorder{}
	dialer := scripted(
		newFakeConn(closeWith(websocket.CloseInternalServerErr)),
		newFakeConn(closeWith(websocket.CloseGoingAway)),
		newFakeConn(closeWith(websocket.CloseInternalServerErr)),
		newFakeConn(closeWith(websocket.CloseNormalClosure)),
	)
	opts := options(dialer)
	opts.MaxReconnectAttempts = 1
	c := start(t, opts, rec, "bitcoin")
	waitDone(t, c)

	assert.Equal(t, StateClosedNormal, c.State())
	assert.EqualValues(t, 4, dialer.dials.Load())
	_, errs := rec.snapshot()
	assert.Empty(t, errs)
}

func TestConnection_ReconnectStartsWithFreshPrices(t *testing.T) {
	rec := &recorder{}
	dialer := scripted(
		newFakeConn(msg(`{"bitcoin":"100"}`), closeWith(websocket.CloseInternalServerErr)),
		newFakeConn(msg(`{"bitcoin":"200"}`), msg(`{"bitcoin":"300"}`), closeWith(websocket.CloseNormalClosure)),
	)
	c := start(t, options(dialer), rec, "bitcoin")
	waitDone(t, c)

	alerts, _ := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].PercentChange.Equal(decimal.NewFromInt(50)))
	assert.EqualValues(t, 2, dialer.dials.Load())
}

func TestConnection_ReadFailureReportedAsTransportError(t *testing.T) {
	rec := &recorder{}
	dialer := scripted(
		newFakeConn(step{err: errors.New("connection reset by peer")}),
		newFakeConn(closeWith(websocket.CloseNormalClosure)),
	)
	c := start(t, options(dialer), rec, "bitcoin")
	waitDone(t, c)

	_, errs := rec.snapshot()
	require.Len(t, errs, 1)
	var te *TransportError
	require.ErrorAs(t, errs[0], &te)
	assert.Equal(t, "读取", te.Op)
	assert.EqualValues(t, 2, dialer.dials.Load())
}

func TestConnection_DisconnectCancelsPendingReconnect(t *testing.T) {
	rec := &recorder{}
	dialer := &fakeDialer{dial: func(context.Context, int) (Conn, error) {
		return nil, errors.New("connection refused")
	}}
	opts := options(dialer)
	opts.ReconnectInterval = time.Hour
	c := start(t, opts, rec, "bitcoin")

	require.Eventually(t, func() bool { return c.State() == StateReconnecting }, time.Second, time.Millisecond)

	c.Disconnect()
	c.Disconnect()
	waitDone(t, c)

	assert.Equal(t, StateClosedNormal, c.State())
	assert.EqualValues(t, 1, dialer.dials.Load())
	assert.Zero(t, rec.count(ErrReconnectExhausted))
}

func TestConnection_NoDialAfterDisconnectRacesBackoff(t *testing.T) {
	rec := &recorder{}
	dialer := &fakeDialer{dial: func(context.Context, int) (Conn, error) {
		return nil, errors.New("connection refused")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	opts := options(dialer)
	// 计时器触发的同时上层取消，两个分支同时就绪
	opts.after = func(time.Duration) <-chan time.Time {
		fired := make(chan time.Time, 1)
		fired <- time.Now()
		cancel()
		return fired
	}

	c, err := Start(ctx, opts, []string{"bitcoin"}, rec.onAlert, rec.onError)
	require.NoError(t, err)
	waitDone(t, c)

	assert.Equal(t, StateClosedNormal, c.State())
	assert.EqualValues(t, 1, dialer.dials.Load())
	assert.Zero(t, rec.count(ErrReconnectExhausted))
}

func TestConnection_DisconnectDuringDialDiscardsConnection(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn(msg(`{"bitcoin":"1"}`))
	entered := make(chan struct{})
	release := make(chan struct{})
	dialer := &fakeDialer{dial: func(context.Context, int) (Conn, error) {
		close(entered)
		<-release
		return conn, nil
	}}
	c := start(t, options(dialer), rec, "bitcoin")

	<-entered
	c.Disconnect()
	close(release)
	waitDone(t, c)

	assert.True(t, conn.isClosed())
	assert.Equal(t, StateClosedNormal, c.State())
	assert.EqualValues(t, 1, dialer.dials.Load())
}

func TestConnection_DisconnectClosesOpenConnection(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	dialer := scripted(conn)
	c := start(t, options(dialer), rec, "bitcoin")

	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, time.Millisecond)
	c.Disconnect()
	waitDone(t, c)

	assert.True(t, conn.isClosed())
	assert.Equal(t, StateClosedNormal, c.State())
	_, errs := rec.snapshot()
	assert.Empty(t, errs)
}

func TestConnection_ParentContextCancelStops(t *testing.T) {
	rec := &recorder{}
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	c, err := Start(ctx, options(scripted(conn)), []string{"bitcoin"}, rec.onAlert, rec.onError)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, time.Millisecond)
	cancel()
	waitDone(t, c)

	assert.True(t, conn.isClosed())
	assert.Equal(t, StateClosedNormal, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "gave_up", StateGaveUp.String())
	assert.True(t, StateGaveUp.Terminal())
	assert.False(t, StateReconnecting.Terminal())
}
