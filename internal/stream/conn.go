// Package stream maintains the persistent feed connection: dial, subscribe,
// heartbeat, failure detection, and reconnect with backoff. Inbound frames
// are handed to the message dispatcher on a single goroutine, which preserves
// per-market arrival order.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/obs"
	"github.com/cbl315/opinion-builder-tools/internal/subs"
)

var errLivenessTimeout = errors.New("stream: liveness timeout")

// Config holds the tunables of the connection lifecycle.
type Config struct {
	// HeartbeatInterval is how often a HEARTBEAT frame is sent while
	// active.
	HeartbeatInterval time.Duration

	// LivenessTimeout declares the connection failed when no inbound frame
	// (data or PONG) has been observed for this long.
	LivenessTimeout time.Duration

	// BackoffMin and BackoffMax bound the jittered exponential reconnect
	// delay.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = 3 * c.HeartbeatInterval
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 5 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 60 * time.Second
	}
	return c
}

// Status is a point-in-time view of the connection.
type Status struct {
	State          State         `json:"-"`
	StateName      string        `json:"state"`
	Connected      bool          `json:"connected"`
	LastMessageAge time.Duration `json:"last_message_age_ns"`
	Session        string        `json:"session,omitempty"`
}

// Conn drives one logical feed connection across any number of physical
// connections. On every (re)connect it subscribes the registry's current
// snapshot, so targets added while disconnected are honored.
type Conn struct {
	dialer    Dialer
	registry  *subs.Registry
	dispatch  func([]byte)
	collector obs.Collector
	cfg       Config

	state   atomic.Int32
	lastMsg atomic.Int64 // unix nanos of the last inbound frame
	session atomic.Value // string: id of the current physical connection

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	current Transport

	wg sync.WaitGroup
}

// New creates a Conn. dispatch receives every inbound frame in arrival
// order; collector may be nil.
func New(dialer Dialer, registry *subs.Registry, dispatch func([]byte), collector obs.Collector, cfg Config) *Conn {
	if collector == nil {
		collector = obs.Nop{}
	}
	c := &Conn{
		dialer:    dialer,
		registry:  registry,
		dispatch:  dispatch,
		collector: collector,
		cfg:       cfg.withDefaults(),
	}
	c.session.Store("")
	return c
}

// Start launches the connection lifecycle in the background. Dial failures
// do not surface here; the connection retries with backoff until Stop.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return fmt.Errorf("stream: start: %w", domain.ErrClosed)
	}
	if c.started {
		return fmt.Errorf("stream: start: %w", domain.ErrAlreadyStarted)
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Stop tears the connection down deterministically: after it returns, no
// further frame is dispatched and no background goroutine remains. Safe to
// call more than once.
func (c *Conn) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.current != nil {
		c.current.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// Subscribe records the target in the registry and, when a connection is
// active, issues the SUBSCRIBE immediately. With no active connection the
// target is picked up by the next (re)connect.
func (c *Conn) Subscribe(t subs.Target) error {
	c.registry.Add(t)
	return c.writeControl(subscribeFrame(t))
}

// Unsubscribe removes the target from the registry and tells an active
// connection to stop delivering it.
func (c *Conn) Unsubscribe(t subs.Target) error {
	c.registry.Remove(t)
	return c.writeControl(unsubscribeFrame(t))
}

// writeControl sends a control frame on the current transport, if any. A
// write failure is left to the read loop to detect; the registry already
// reflects the caller's intent for the next connect.
func (c *Conn) writeControl(f controlFrame) error {
	c.mu.Lock()
	t := c.current
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.WriteJSON(f)
}

// Status reports the current state and the age of the last inbound frame.
func (c *Conn) Status() Status {
	st := State(c.state.Load())
	var age time.Duration
	if ns := c.lastMsg.Load(); ns > 0 {
		age = time.Since(time.Unix(0, ns))
	}
	sess, _ := c.session.Load().(string)
	return Status{
		State:          st,
		StateName:      st.String(),
		Connected:      st == StateActive,
		LastMessageAge: age,
		Session:        sess,
	}
}

// run is the connection lifecycle loop. It owns every state transition.
func (c *Conn) run(ctx context.Context) {
	defer c.wg.Done()
	defer c.setState(StateDisconnected)

	bo := &backoff.Backoff{
		Min:    c.cfg.BackoffMin,
		Max:    c.cfg.BackoffMax,
		Factor: 2,
		Jitter: true,
	}
	attempt := 0

	for ctx.Err() == nil {
		c.session.Store(uuid.NewString())
		c.setState(StateConnecting)

		t, err := c.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.collector.TransportFailure(c.sessionID(), err)
			if !c.waitBackoff(ctx, bo, &attempt) {
				return
			}
			continue
		}
		c.setTransport(t)

		c.setState(StateSubscribing)
		if err := c.subscribeAll(t); err != nil {
			t.Close()
			c.setTransport(nil)
			if ctx.Err() != nil {
				return
			}
			c.collector.TransportFailure(c.sessionID(), err)
			if !c.waitBackoff(ctx, bo, &attempt) {
				return
			}
			continue
		}

		c.setState(StateActive)
		bo.Reset()
		attempt = 0
		c.touch()

		hbStop := make(chan struct{})
		c.wg.Add(1)
		go c.heartbeatLoop(hbStop, t)

		err = c.readLoop(ctx, t)
		close(hbStop)
		t.Close()
		c.setTransport(nil)

		if ctx.Err() != nil {
			return
		}
		c.collector.TransportFailure(c.sessionID(), err)
		if !c.waitBackoff(ctx, bo, &attempt) {
			return
		}
	}
}

// subscribeAll issues a SUBSCRIBE for the registry's snapshot as it exists
// right now, not a copy cached at Start.
func (c *Conn) subscribeAll(t Transport) error {
	for _, target := range c.registry.Snapshot() {
		if err := t.WriteJSON(subscribeFrame(target)); err != nil {
			return err
		}
	}
	return nil
}

// readLoop pulls frames until the transport fails or the context is
// cancelled. Dispatch runs inline, so frames for one market apply in the
// order received on the wire.
func (c *Conn) readLoop(ctx context.Context, t Transport) error {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.touch()
		c.dispatch(data)
	}
}

// heartbeatLoop emits HEARTBEAT frames on a fixed interval and enforces the
// liveness timeout. It runs per physical connection, independent of the read
// loop, and stops with it.
func (c *Conn) heartbeatLoop(stop <-chan struct{}, t Transport) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if age := c.sinceLastMessage(); age > c.cfg.LivenessTimeout {
				c.collector.TransportFailure(c.sessionID(), errLivenessTimeout)
				t.Close() // unblocks the read loop
				return
			}
			if err := t.WriteJSON(heartbeatFrame); err != nil {
				t.Close()
				return
			}
		}
	}
}

// waitBackoff transitions to Reconnecting and sleeps the next jittered
// delay. Returns false when the context was cancelled during the wait.
func (c *Conn) waitBackoff(ctx context.Context, bo *backoff.Backoff, attempt *int) bool {
	c.setState(StateReconnecting)
	*attempt++
	delay := bo.Duration()
	c.collector.ReconnectAttempt(c.sessionID(), *attempt, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Conn) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.collector.StateChange(c.sessionID(), old.String(), s.String())
	}
}

func (c *Conn) setTransport(t Transport) {
	c.mu.Lock()
	c.current = t
	// Stop raced us: close the transport we just installed so the read
	// loop cannot outlive Stop.
	if c.stopped && t != nil {
		t.Close()
	}
	c.mu.Unlock()
}

func (c *Conn) sessionID() string {
	s, _ := c.session.Load().(string)
	return s
}

func (c *Conn) touch() {
	c.lastMsg.Store(time.Now().UnixNano())
}

func (c *Conn) sinceLastMessage() time.Duration {
	ns := c.lastMsg.Load()
	if ns == 0 {
		return 0
	}
	return time.Since(time.Unix(0, ns))
}
