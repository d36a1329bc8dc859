package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Client is a single device's shadow connection: the Topic Contract,
// In-Flight Table, Delta Registry, and connection/subscription state
// machine described by this package, bound to one transport connection.
//
// A Client is created with New, connected with Connect, and must be closed
// with Close when no longer needed so it can be detached from the
// process-wide client registry and housekeeper.
type Client struct {
	device    string
	brokerURL string
	opts      *clientOptions

	topics   *topicContract
	inFlight *inFlightTable
	deltas   *deltaRegistry

	tr *transport

	connected  atomic.Bool
	subscribed atomic.Bool

	logger *slog.Logger
}

// New constructs a Client for the given broker URL and device name. The
// client is not connected until Connect is called.
func New(brokerURL, deviceName string, opts ...Option) (*Client, error) {
	if brokerURL == "" || deviceName == "" {
		panic("shadow: New called with empty brokerURL or deviceName")
	}

	o := defaultClientOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.clientID == "" {
		o.clientID = deviceName
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		device:    deviceName,
		brokerURL: brokerURL,
		opts:      o,
		topics:    buildTopicContract(o.topicPrefix, deviceName),
		inFlight:  newInFlightTable(o.inFlightCapacity, o.now),
		deltas:    newDeltaRegistry(o.deltaHandlerCapacity),
		logger:    o.logger,
	}
	return c, nil
}

// Connect dials the broker, waits for the transport to report connected, and
// performs the one-shot subscribe-many across every reply topic plus delta.
// Only after this returns nil does the client accept Update/Get/Delete
// calls. A context deadline exceeded while waiting on either step surfaces
// as NotConnected, never as a bare timeout error (resolves the reference
// source's ambiguous connect-timeout behavior).
func (c *Client) Connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, c.opts.connectTimeout)
	defer cancel()

	tr, err := newTransport(connectCtx, c.brokerURL, c.opts.clientID, c.opts.username, c.opts.password,
		c.opts.keepAlive, c.opts.tlsConfig, c.logger)
	if err != nil {
		if connectCtx.Err() != nil {
			return newErr(NotConnected, "timed out waiting for broker connection")
		}
		return wrapErr(NotConnected, err)
	}
	c.tr = tr
	c.connected.Store(true)
	ensureHousekeeper(c.opts.sweepInterval, c.opts.now)

	tr.onLost = func(err error) {
		c.connected.Store(false)
		c.subscribed.Store(false)
		c.logger.Warn("shadow: connection lost", "device", c.device, "error", err)
	}
	tr.onConnect = func() {
		c.connected.Store(true)
		if err := c.subscribeAll(context.Background()); err != nil {
			c.logger.Error("shadow: resubscribe after reconnect failed", "device", c.device, "error", err)
			return
		}
		c.subscribed.Store(true)
	}

	subCtx, subCancel := context.WithTimeout(ctx, c.opts.subscribeTimeout)
	defer subCancel()
	if err := c.subscribeAll(subCtx); err != nil {
		return wrapErr(NotConnected, err)
	}
	c.subscribed.Store(true)

	if err := defaultRegistry.add(c); err != nil {
		return err
	}
	return nil
}

func (c *Client) subscribeAll(ctx context.Context) error {
	return c.tr.subscribeMany(ctx, c.topics.subscribeTopics, c.onMessageArrived)
}

// Close detaches the client from the process-wide registry (so future
// housekeeper sweeps ignore it) and disconnects the transport. Outstanding
// in-flight callbacks are not proactively fired; pending requests are
// abandoned.
func (c *Client) Close() error {
	defaultRegistry.remove(c)
	c.subscribed.Store(false)
	c.connected.Store(false)
	if c.tr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.tr.disconnect(ctx)
}

// sweepInFlight implements the sweepable interface consumed by the
// housekeeper.
func (c *Client) sweepInFlight(now time.Time) {
	c.inFlight.sweep(now)
}

// Update pushes reportedJSON (a JSON object, e.g. {"led":"on"}) as the
// device's new reported state, wrapping it as {"reported": reportedJSON}
// before sending.
func (c *Client) Update(ctx context.Context, reportedJSON json.RawMessage, cb ShadowCallback, userCtx any, timeout time.Duration) error {
	if reportedJSON == nil || cb == nil {
		panic("shadow: Update called with nil reportedJSON or callback")
	}
	payload := map[string]json.RawMessage{"reported": reportedJSON}
	return c.send(ctx, ActionUpdate, payload, cb, userCtx, timeout)
}

// Get requests the current shadow document.
func (c *Client) Get(ctx context.Context, cb ShadowCallback, userCtx any, timeout time.Duration) error {
	if cb == nil {
		panic("shadow: Get called with nil callback")
	}
	return c.send(ctx, ActionGet, map[string]json.RawMessage{}, cb, userCtx, timeout)
}

// Delete deletes the shadow document.
func (c *Client) Delete(ctx context.Context, cb ShadowCallback, userCtx any, timeout time.Duration) error {
	if cb == nil {
		panic("shadow: Delete called with nil callback")
	}
	return c.send(ctx, ActionDelete, map[string]json.RawMessage{}, cb, userCtx, timeout)
}

// RegisterDelta adds a handler for the given key ("root" for the whole
// desired object, or a property name). The client must already be connected
// and subscribed — registering before the initial subscribe completes could
// silently miss early deltas, so the caller must establish connectivity
// first.
func (c *Client) RegisterDelta(key string, cb DeltaCallback) error {
	if cb == nil {
		panic("shadow: RegisterDelta called with nil callback")
	}
	if !c.connected.Load() || !c.subscribed.Load() {
		return newErr(NotConnected, "client is not connected and subscribed")
	}
	return c.deltas.register(key, cb)
}

// send is the internal engine described by the component design: it
// generates a fresh request id, reserves an in-flight slot, stamps the
// payload, and publishes. On publish failure the error is returned and the
// slot is deliberately left in place to be reaped by the housekeeper's
// timeout sweep, rather than
// reclaimed immediately — this trades promptness for simplicity, as
// documented for the reference design.
func (c *Client) send(ctx context.Context, action Action, payload map[string]json.RawMessage, cb ShadowCallback, userCtx any, timeout time.Duration) error {
	if !c.connected.Load() || !c.subscribed.Load() {
		return newErr(NotConnected, "client is not connected and subscribed")
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	topic, err := c.topics.sendTopicFor(action)
	if err != nil {
		return err
	}

	requestID := uuid.New().String()
	if err := c.inFlight.insert(requestID, action, cb, userCtx, timeout); err != nil {
		return err
	}

	payload["requestId"] = mustMarshal(requestID)
	body, err := json.Marshal(payload)
	if err != nil {
		return newErr(BadArgument, err.Error())
	}

	if err := c.tr.publish(ctx, topic, body); err != nil {
		c.logger.Warn("shadow: publish failed, entry will time out", "device", c.device, "action", action, "requestId", requestID, "error", err)
		return err
	}
	return nil
}

func mustMarshal(s string) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("shadow: marshaling a string failed: %v", err))
	}
	return json.RawMessage(b)
}
