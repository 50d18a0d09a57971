package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/blackjack-client/internal/clienterr"
	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

const writeTimeout = 5 * time.Second

type Config struct {
	BaseURL string
	// Transports in order of preference; the first is the primary.
	Transports []string
	// Timeout bounds one connection attempt across every transport in the list.
	Timeout    time.Duration
	RetryDelay time.Duration
	// MaxRetries consecutive failed attempts move the manager to StatusFailed.
	MaxRetries int
	SendBuffer int
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Transports: []string{NameWebsocket, NamePolling},
		Timeout:    45 * time.Second,
		RetryDelay: 2 * time.Second,
		MaxRetries: 5,
		SendBuffer: 16,
	}
}

type Option func(*Manager)

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithDialers replaces the dialers keyed by their Name.
func WithDialers(ds ...Dialer) Option {
	return func(m *Manager) {
		m.dialers = make(map[string]Dialer, len(ds))
		for _, d := range ds {
			m.dialers[d.Name()] = d
		}
	}
}

// WithHTTPClient is used by the default dialers and the health probe.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithHealthCheck replaces the GET /health probe.
func WithHealthCheck(fn func(ctx context.Context) error) Option {
	return func(m *Manager) { m.health = fn }
}

type subscriber struct {
	id uint64
	fn func(Event)
}

type liveConn struct {
	conn Conn
	out  chan protocol.Envelope
}

// Manager owns the single connection to the table server. It runs one
// supervisor goroutine per Connect call which dials, serves, and redials;
// everything it observes is published to subscribers as Events, in order,
// from that goroutine.
type Manager struct {
	cfg        Config
	log        *zap.Logger
	dialers    map[string]Dialer
	httpClient *http.Client
	health     func(ctx context.Context) error

	mu      sync.Mutex
	status  Status
	subs    []subscriber
	nextSub uint64
	live    *liveConn
	retries int
	prefs   []string
	cancel  context.CancelFunc
	done    chan error
}

func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig(cfg.BaseURL)
	if len(cfg.Transports) == 0 {
		cfg.Transports = def.Transports
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	m := &Manager{
		cfg:    cfg,
		log:    zap.NewNop(),
		status: StatusDisconnected,
		prefs:  slices.Clone(cfg.Transports),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialers == nil {
		m.dialers = map[string]Dialer{
			NameWebsocket: WebsocketDialer{HTTPClient: m.httpClient},
			NamePolling:   PollingDialer{HTTPClient: m.httpClient},
		}
	}
	if m.health == nil {
		m.health = func(ctx context.Context) error {
			return CheckHealth(ctx, m.httpClient, m.cfg.BaseURL)
		}
	}
	return m
}

// Subscribe registers fn for every subsequent Event. The returned disposer
// is idempotent. Disconnect releases all subscribers.
func (m *Manager) Subscribe(fn func(Event)) (dispose func()) {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.subs = slices.DeleteFunc(m.subs, func(s subscriber) bool { return s.id == id })
		})
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Transports returns the current preference order, which shrinks to the
// fallbacks once the primary has failed after a transport-level drop.
func (m *Manager) Transports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.prefs)
}

func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Connect probes the server, then starts the supervisor and waits for the
// outcome of the first attempt. A failed first attempt is returned as a
// connectivity error while retries continue in the background. Calling
// Connect again tears the previous connection down first.
//
// ctx bounds the probe and the wait only. The supervisor outlives it and
// stops on Disconnect or the next Connect.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.stop(); err != nil {
		m.log.Debug("previous connection closed with error", zap.Error(err))
	}

	for _, name := range m.cfg.Transports {
		if _, ok := m.dialers[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
	}
	if len(m.cfg.Transports) == 0 {
		return ErrNoTransports
	}

	m.mu.Lock()
	m.retries = 0
	m.prefs = slices.Clone(m.cfg.Transports)
	m.mu.Unlock()

	m.setStatus(StatusConnecting, nil)
	if err := m.health(ctx); err != nil {
		m.log.Warn("health check failed", zap.String("url", m.cfg.BaseURL), zap.Error(err))
		if _, ok := clienterr.KindOf(err); !ok {
			err = clienterr.Wrap(clienterr.KindConnectivity, "Server health check failed", err)
		}
		m.setStatus(StatusFailed, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	first := make(chan error, 1)
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(runCtx, done, first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect stops the supervisor, closes the live connection, emits the
// final StatusDisconnected and releases every subscriber.
func (m *Manager) Disconnect() error {
	err := m.stop()
	if m.Status() != StatusDisconnected {
		m.setStatus(StatusDisconnected, nil)
	}

	m.mu.Lock()
	m.subs = nil
	m.mu.Unlock()
	return err
}

// Send queues env on the live connection without blocking.
func (m *Manager) Send(env protocol.Envelope) error {
	m.mu.Lock()
	live, status := m.live, m.status
	m.mu.Unlock()

	if live == nil || status != StatusConnected {
		return ErrNotConnected
	}
	select {
	case live.out <- env:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (m *Manager) stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := <-done
	if m.Status() != StatusDisconnected {
		m.setStatus(StatusDisconnected, nil)
	}
	return err
}

func (m *Manager) run(ctx context.Context, done chan<- error, first chan<- error) {
	var closeErr error
	defer func() { done <- closeErr }()

	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			first <- err
		}
	}
	defer report(context.Canceled)

	degrade := false
	for {
		conn, err := m.open(ctx, degrade)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			m.retries++
			retries := m.retries
			m.mu.Unlock()

			m.log.Warn("connect failed", zap.Int("attempt", retries), zap.Error(err))
			if retries >= m.cfg.MaxRetries {
				ferr := clienterr.Wrap(clienterr.KindConnectivity,
					"Unable to connect after multiple attempts. Please refresh the page.", err)
				report(ferr)
				m.setStatus(StatusFailed, ferr)
				return
			}
			rerr := clienterr.Wrap(clienterr.KindConnectivity, "Connection error. Retrying...", err)
			report(rerr)
			m.setStatus(StatusReconnecting, rerr)

			t := time.NewTimer(m.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}

		degrade = false
		live := &liveConn{conn: conn, out: make(chan protocol.Envelope, m.cfg.SendBuffer)}
		m.mu.Lock()
		m.retries = 0
		m.live = live
		m.mu.Unlock()

		m.log.Info("connected", zap.String("transport", conn.Transport()), zap.String("sid", conn.ID()))
		m.emit(Opened{ConnID: conn.ID(), Transport: conn.Transport()})
		m.setStatus(StatusConnected, nil)
		report(nil)

		serveErr := m.serve(ctx, live)

		m.mu.Lock()
		m.live = nil
		m.mu.Unlock()
		if err := conn.Close(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("close %s: %w", conn.Transport(), err))
		}

		if ctx.Err() != nil {
			return
		}

		serverInitiated := errors.Is(serveErr, ErrServerClosed)
		m.log.Warn("connection lost",
			zap.String("transport", conn.Transport()),
			zap.Bool("server_initiated", serverInitiated),
			zap.Error(serveErr))
		dropped := clienterr.Wrap(clienterr.KindTransportDropped, "Connection lost. Attempting to reconnect...", serveErr)
		m.emit(Closed{ServerInitiated: serverInitiated, Err: dropped})
		m.setStatus(StatusReconnecting, dropped)

		// A server close keeps the preference order; a transport close lets
		// the next attempt demote the primary if it fails again.
		degrade = !serverInitiated
	}
}

func (m *Manager) open(ctx context.Context, degrade bool) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	prefs := m.Transports()
	var errs error
	for i, name := range prefs {
		conn, err := m.dialers[name].Dial(ctx, m.cfg.BaseURL)
		if err == nil {
			return conn, nil
		}
		m.log.Debug("transport failed", zap.String("transport", name), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))

		if i == 0 && degrade && len(prefs) > 1 {
			m.mu.Lock()
			m.prefs = slices.Clone(prefs[1:])
			m.mu.Unlock()
			m.log.Info("primary transport demoted", zap.String("transport", name), zap.Strings("now", prefs[1:]))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

func (m *Manager) serve(ctx context.Context, live *liveConn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			env, err := live.conn.Recv(gctx)
			if errors.Is(err, ErrBadFrame) {
				m.log.Warn("dropping frame", zap.Error(err))
				continue
			}
			if err != nil {
				return err
			}
			m.emit(Received{Envelope: env})
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case env := <-live.out:
				wctx, cancel := context.WithTimeout(gctx, writeTimeout)
				err := live.conn.Send(wctx, env)
				cancel()
				if err != nil {
					return fmt.Errorf("send %s: %w", env.Event, err)
				}
			}
		}
	})

	return g.Wait()
}

func (m *Manager) setStatus(to Status, err error) {
	m.mu.Lock()
	from := m.status
	m.status = to
	m.mu.Unlock()
	m.emit(StatusChanged{From: from, To: to, Err: err})
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	subs := slices.Clone(m.subs)
	m.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
