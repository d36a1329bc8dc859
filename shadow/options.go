package shadow

import (
	"crypto/tls"
	"log/slog"
	"time"
)

// Default tunables, used when the corresponding option is not supplied.
const (
	DefaultInFlightCapacity     = 16
	DefaultDeltaHandlerCapacity = 16
	DefaultKeepAlive            = 60 * time.Second
	DefaultConnectTimeout       = 30 * time.Second
	DefaultSubscribeTimeout     = 10 * time.Second
	DefaultRequestTimeout       = 10 * time.Second
)

// clientOptions holds configuration for a shadow Client, set through the
// functional-options pattern (Option, WithXxx).
type clientOptions struct {
	topicPrefix string

	username string
	password string

	inFlightCapacity     int
	deltaHandlerCapacity int

	keepAlive        time.Duration
	connectTimeout   time.Duration
	subscribeTimeout time.Duration

	tlsConfig *tls.Config
	clientID  string

	sweepInterval time.Duration
	now           func() time.Time

	logger *slog.Logger
}

func defaultClientOptions() *clientOptions {
	return &clientOptions{
		topicPrefix:          DefaultTopicPrefix,
		inFlightCapacity:     DefaultInFlightCapacity,
		deltaHandlerCapacity: DefaultDeltaHandlerCapacity,
		keepAlive:            DefaultKeepAlive,
		connectTimeout:       DefaultConnectTimeout,
		subscribeTimeout:     DefaultSubscribeTimeout,
		sweepInterval:        DefaultSweepInterval,
	}
}

// Option configures a Client at construction time.
type Option func(*clientOptions)

// WithTopicPrefix overrides the default "baidu/iot/shadow" topic namespace.
func WithTopicPrefix(prefix string) Option {
	return func(o *clientOptions) { o.topicPrefix = prefix }
}

// WithCredentials sets the MQTT username and password.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = password
	}
}

// WithClientID sets the MQTT client identifier. If empty, the device name is
// used.
func WithClientID(id string) Option {
	return func(o *clientOptions) { o.clientID = id }
}

// WithInFlightCapacity overrides the fixed size of the in-flight request
// table (default DefaultInFlightCapacity).
func WithInFlightCapacity(n int) Option {
	return func(o *clientOptions) { o.inFlightCapacity = n }
}

// WithDeltaHandlerCapacity overrides the fixed size of the delta handler
// registry (default DefaultDeltaHandlerCapacity).
func WithDeltaHandlerCapacity(n int) Option {
	return func(o *clientOptions) { o.deltaHandlerCapacity = n }
}

// WithKeepAlive overrides the MQTT keepalive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(o *clientOptions) { o.keepAlive = d }
}

// WithConnectTimeout overrides how long Connect waits for the transport to
// report connected before returning NotConnected.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.connectTimeout = d }
}

// WithSubscribeTimeout overrides how long Connect waits for the one-shot
// subscribe-many to complete.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.subscribeTimeout = d }
}

// WithTLS enables TLS on the underlying MQTT connection.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) { o.tlsConfig = config }
}

// WithSweepInterval sets how often the process-wide housekeeper sweeps
// in-flight tables. The housekeeper is shared by all clients and takes its
// interval from the first Client to Connect; on any later client this option
// has no effect. Exists specifically so tests can use a short interval
// instead of the 1-second production default.
func WithSweepInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.sweepInterval = d }
}

// WithTimeSource overrides the clock used for this client's in-flight
// deadlines. The housekeeper's sweep clock is taken from the first Client to
// Connect only. Exists so tests can inject a fake clock instead of depending
// on wall-clock sleeps.
func WithTimeSource(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// WithLogger overrides the structured logger used for this client (default
// slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}
