package shadow

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// transport is the thin facade in front of the underlying MQTT client. It
// exposes exactly the capabilities the shadow engine needs: async connect,
// subscribe to many topics at once (bounded by a timeout), publish at QoS 1
// non-retained, disconnect, and the inbound callbacks (message arrived,
// connection up, connection lost). It deliberately knows nothing about wire
// framing or reconnect backoff — that is autopaho.ConnectionManager's job.
type transport struct {
	cm *autopaho.ConnectionManager

	onMessage func(topic string, payload []byte)
	onConnect func()
	onLost    func(error)
}

// newTransport dials the broker through autopaho (which owns reconnection,
// keepalive, and session resumption) and wires the adapter's callbacks into
// its connection lifecycle hooks. The returned transport is not yet
// subscribed to anything; callers must call subscribeMany.
func newTransport(ctx context.Context, brokerURL, clientID, username, password string, keepAlive time.Duration, tlsConfig *tls.Config, logger *slog.Logger) (*transport, error) {
	server, err := url.Parse(brokerURL)
	if err != nil {
		return nil, wrapErr(BadArgument, err)
	}

	t := &transport{}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{server},
		KeepAlive:                     uint16(keepAlive / time.Second),
		CleanStartOnInitialConnection: true,
		ConnectUsername:               username,
		ConnectPassword:               []byte(password),
		TlsCfg:                        tlsConfig,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			if t.onConnect != nil {
				t.onConnect()
			}
		},
		OnConnectError: func(err error) {
			if logger != nil {
				logger.Warn("shadow: connect attempt failed", "error", err)
			}
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if t.onMessage != nil {
						t.onMessage(pr.Packet.Topic, pr.Packet.Payload)
					}
					return false, nil
				},
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				if t.onLost != nil {
					t.onLost(disconnectError(d))
				}
			},
			OnClientError: func(err error) {
				if t.onLost != nil {
					t.onLost(err)
				}
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, wrapErr(NotConnected, err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, wrapErr(NotConnected, err)
	}
	t.cm = cm
	return t, nil
}

// subscribeMany subscribes to every topic in the given order at QoS 1 in a
// single SUBSCRIBE packet, waiting up to ctx's deadline for the SUBACK.
// Inbound messages are routed by dispatch, since the paho.golang router
// delivers every received publish regardless of which topic matched.
func (t *transport) subscribeMany(ctx context.Context, topics []string, dispatch func(topic string, payload []byte)) error {
	t.onMessage = dispatch

	subs := make([]paho.SubscribeOptions, len(topics))
	for i, topic := range topics {
		subs[i] = paho.SubscribeOptions{Topic: topic, QoS: byte(1)}
	}
	_, err := t.cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs})
	if err != nil {
		return wrapErr(Failure, err)
	}
	return nil
}

// publish sends payload to topic at QoS 1, non-retained, returning once the
// broker has acknowledged the publish or ctx is done.
func (t *transport) publish(ctx context.Context, topic string, payload []byte) error {
	_, err := t.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Retain:  false,
		Payload: payload,
	})
	if err != nil {
		return wrapErr(Failure, err)
	}
	return nil
}

// disconnect gracefully closes the underlying MQTT connection.
func (t *transport) disconnect(ctx context.Context) error {
	return t.cm.Disconnect(ctx)
}

func disconnectError(d *paho.Disconnect) error {
	reason := "server initiated disconnect"
	if d != nil && d.Properties != nil && d.Properties.ReasonString != "" {
		reason = d.Properties.ReasonString
	}
	return newErr(NotConnected, reason)
}
