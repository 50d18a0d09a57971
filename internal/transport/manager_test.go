package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/blackjack-client/internal/clienterr"
	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

var errRefused = errors.New("connection refused")

type fakeConn struct {
	id        string
	transport string
	in        chan protocol.Envelope
	drop      chan error

	mu       sync.Mutex
	sent     []protocol.Envelope
	closed   bool
	closeErr error
}

func newFakeConn(id, transport string) *fakeConn {
	return &fakeConn{id: id, transport: transport, in: make(chan protocol.Envelope, 8), drop: make(chan error, 1)}
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) Transport() string { return c.transport }

func (c *fakeConn) Recv(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case err := <-c.drop:
		return protocol.Envelope{}, err
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (c *fakeConn) Send(_ context.Context, env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.sent {
		out = append(out, e.Event)
	}
	return out
}

// fakeDialer fails while fail is set and otherwise hands out fresh conns.
type fakeDialer struct {
	name string

	mu    sync.Mutex
	fail  bool
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) Name() string { return d.name }

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail {
		return nil, errRefused
	}
	c := newFakeConn(fmt.Sprintf("%s-%d", d.name, d.dials), d.name)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = v
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// recorder collects events delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) statuses() []Status {
	var out []Status
	for _, ev := range r.snapshot() {
		if sc, ok := ev.(StatusChanged); ok {
			out = append(out, sc.To)
		}
	}
	return out
}

func okHealth(context.Context) error { return nil }

func newTestManager(t *testing.T, ds ...Dialer) *Manager {
	t.Helper()
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name())
	}
	m := NewManager(Config{
		BaseURL:    "http://table.test",
		Transports: names,
		Timeout:    time.Second,
		RetryDelay: 5 * time.Millisecond,
		MaxRetries: 5,
	}, WithDialers(ds...), WithHealthCheck(okHealth))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m
}

func TestManager_ConnectOpensPrimary(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	poll := &fakeDialer{name: NamePolling}
	m := newTestManager(t, ws, poll)

	rec := &recorder{}
	m.Subscribe(rec.record)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StatusConnected, m.Status())
	assert.Equal(t, 1, ws.dialCount())
	assert.Equal(t, 0, poll.dialCount())
	assert.Equal(t, 0, m.Retries())

	events := rec.snapshot()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, Opened{ConnID: "websocket-1", Transport: NameWebsocket}, events[1])
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.statuses())
}

func TestManager_FallsBackWhenPrimaryFails(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket, fail: true}
	poll := &fakeDialer{name: NamePolling}
	m := newTestManager(t, ws, poll)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, ws.dialCount())
	assert.Equal(t, 1, poll.dialCount())
	// A first-time fallback is not a degrade; the primary stays first.
	assert.Equal(t, []string{NameWebsocket, NamePolling}, m.Transports())
}

func TestManager_RetriesStopAtCeiling(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket, fail: true}
	m := newTestManager(t, ws)

	rec := &recorder{}
	m.Subscribe(rec.record)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, clienterr.ErrConnectivity))

	require.Eventually(t, func() bool { return m.Status() == StatusFailed }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 5, ws.dialCount())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 5, ws.dialCount(), "no automatic attempts after failing")
	assert.Equal(t, StatusFailed, m.Status())

	statuses := rec.statuses()
	assert.Equal(t, StatusFailed, statuses[len(statuses)-1])
}

func TestManager_RetryCounterResetsOnSuccess(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket, fail: true}
	m := NewManager(Config{
		BaseURL:    "http://table.test",
		Transports: []string{NameWebsocket},
		RetryDelay: 5 * time.Millisecond,
		MaxRetries: 1000,
	}, WithDialers(ws), WithHealthCheck(okHealth))
	t.Cleanup(func() { _ = m.Disconnect() })

	require.Error(t, m.Connect(context.Background()))
	require.Eventually(t, func() bool { return m.Retries() >= 2 }, time.Second, time.Millisecond)
	ws.setFail(false)

	require.Eventually(t, func() bool { return m.Status() == StatusConnected }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, m.Retries())
}

func TestManager_ServerCloseReconnectsKeepingOrder(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	poll := &fakeDialer{name: NamePolling}
	m := newTestManager(t, ws, poll)

	rec := &recorder{}
	m.Subscribe(rec.record)
	require.NoError(t, m.Connect(context.Background()))

	first := ws.last()
	first.drop <- fmt.Errorf("%w: status 1000", ErrServerClosed)

	require.Eventually(t, func() bool { return ws.dialCount() == 2 && m.Status() == StatusConnected }, time.Second, 2*time.Millisecond)
	assert.True(t, first.isClosed())
	assert.Equal(t, []string{NameWebsocket, NamePolling}, m.Transports())

	var closed []Closed
	for _, ev := range rec.snapshot() {
		if c, ok := ev.(Closed); ok {
			closed = append(closed, c)
		}
	}
	require.Len(t, closed, 1)
	assert.True(t, closed[0].ServerInitiated)
	assert.True(t, errors.Is(closed[0].Err, clienterr.ErrTransportDropped))
}

func TestManager_TransportCloseDemotesPrimary(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	poll := &fakeDialer{name: NamePolling}
	m := newTestManager(t, ws, poll)
	require.NoError(t, m.Connect(context.Background()))

	// Network blip; the primary is now unreachable.
	ws.setFail(true)
	ws.last().drop <- errors.New("read: connection reset by peer")

	require.Eventually(t, func() bool { return poll.dialCount() == 1 && m.Status() == StatusConnected }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []string{NamePolling}, m.Transports())
	assert.Equal(t, 2, ws.dialCount())

	// Later drops only use the fallback.
	ws.setFail(false)
	poll.last().drop <- errors.New("EOF")
	require.Eventually(t, func() bool { return poll.dialCount() == 2 && m.Status() == StatusConnected }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, ws.dialCount())
}

func TestManager_SendGoesThroughLiveConn(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	err := m.Send(protocol.Envelope{Event: protocol.EvtHit})
	assert.True(t, errors.Is(err, ErrNotConnected))

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Send(protocol.Envelope{Event: protocol.EvtHit}))
	require.Eventually(t, func() bool { return len(ws.last().sentEvents()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []string{protocol.EvtHit}, ws.last().sentEvents())
}

func TestManager_ReceivedEventsAreDelivered(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	got := make(chan protocol.Envelope, 4)
	m.Subscribe(func(ev Event) {
		if r, ok := ev.(Received); ok {
			got <- r.Envelope
		}
	})
	require.NoError(t, m.Connect(context.Background()))

	ws.last().in <- protocol.Envelope{Event: protocol.EvtGameStateUpdate}
	select {
	case env := <-got:
		assert.Equal(t, protocol.EvtGameStateUpdate, env.Event)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for envelope")
	}
}

func TestManager_DisconnectReleasesEverything(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	rec := &recorder{}
	dispose := m.Subscribe(rec.record)
	require.NoError(t, m.Connect(context.Background()))
	conn := ws.last()

	require.NoError(t, m.Disconnect())
	assert.True(t, conn.isClosed())
	assert.Equal(t, StatusDisconnected, m.Status())
	statuses := rec.statuses()
	assert.Equal(t, StatusDisconnected, statuses[len(statuses)-1])

	// No listener survives the teardown.
	n := len(rec.snapshot())
	require.NoError(t, m.Connect(context.Background()))
	assert.Len(t, rec.snapshot(), n)
	dispose()
	dispose()
}

func TestManager_OutlivesConnectContext(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	rec := &recorder{}
	m.Subscribe(rec.record)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, m.Connect(ctx))
	conn := ws.last()
	cancel()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StatusConnected, m.Status())
	assert.False(t, conn.isClosed())
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.statuses())

	require.NoError(t, m.Send(protocol.Envelope{Event: protocol.EvtStand}))
	require.Eventually(t, func() bool { return len(conn.sentEvents()) == 1 }, time.Second, 2*time.Millisecond)

	// The supervisor still redials after the caller's context is gone.
	conn.drop <- errors.New("EOF")
	require.Eventually(t, func() bool { return ws.dialCount() == 2 && m.Status() == StatusConnected }, time.Second, 2*time.Millisecond)
}

func TestManager_ReconnectReportsDisconnected(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	rec := &recorder{}
	m.Subscribe(rec.record)
	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, []Status{
		StatusConnecting, StatusConnected,
		StatusDisconnected,
		StatusConnecting, StatusConnected,
	}, rec.statuses())
}

func TestManager_ReconnectLogsPreviousCloseError(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewManager(Config{BaseURL: "http://table.test", Transports: []string{NameWebsocket}},
		WithDialers(ws), WithHealthCheck(okHealth), WithLogger(zap.New(core)))
	t.Cleanup(func() { _ = m.Disconnect() })

	require.NoError(t, m.Connect(context.Background()))
	old := ws.last()
	old.mu.Lock()
	old.closeErr = errors.New("broken pipe")
	old.mu.Unlock()

	require.NoError(t, m.Connect(context.Background()))
	entries := logs.FilterMessage("previous connection closed with error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["error"], "broken pipe")
}

func TestManager_ReconnectSupersedesPreviousConnection(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := newTestManager(t, ws)

	var mu sync.Mutex
	opened := 0
	m.Subscribe(func(ev Event) {
		if _, ok := ev.(Opened); ok {
			mu.Lock()
			opened++
			mu.Unlock()
		}
	})
	received := make(chan string, 4)
	m.Subscribe(func(ev Event) {
		if r, ok := ev.(Received); ok {
			received <- r.Envelope.Event
		}
	})

	require.NoError(t, m.Connect(context.Background()))
	old := ws.last()
	require.NoError(t, m.Connect(context.Background()))

	assert.True(t, old.isClosed())
	assert.Equal(t, 2, ws.dialCount())

	// Whatever the superseded conn still has queued is never delivered.
	old.in <- protocol.Envelope{Event: "stale"}
	ws.last().in <- protocol.Envelope{Event: "fresh"}
	select {
	case ev := <-received:
		assert.Equal(t, "fresh", ev)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for envelope")
	}
	select {
	case ev := <-received:
		t.Fatalf("unexpected extra delivery %q", ev)
	case <-time.After(30 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, opened)
}

func TestManager_HealthFailurePreventsDialing(t *testing.T) {
	ws := &fakeDialer{name: NameWebsocket}
	m := NewManager(Config{BaseURL: "http://table.test", Transports: []string{NameWebsocket}},
		WithDialers(ws),
		WithHealthCheck(func(context.Context) error {
			return clienterr.New(clienterr.KindConnectivity, "Server health check failed")
		}))

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, clienterr.ErrConnectivity))
	assert.Equal(t, StatusFailed, m.Status())
	assert.Equal(t, 0, ws.dialCount())
}

func TestManager_UnknownTransport(t *testing.T) {
	m := NewManager(Config{BaseURL: "http://table.test", Transports: []string{"carrier-pigeon"}},
		WithDialers(&fakeDialer{name: NameWebsocket}), WithHealthCheck(okHealth))
	err := m.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrUnknownTransport))
}
