// Package shadow implements a device-shadow client on top of an MQTT transport.
//
// A shadow is a server-persisted JSON document representing a device's last
// reported state and, optionally, a desired target state. Applications use
// this package to push reported state (Update), fetch the current shadow
// (Get), delete it (Delete), and subscribe to deltas describing how desired
// state diverges from reported state (RegisterDelta).
//
// The package turns MQTT's fire-and-forget publish model into a request/reply
// RPC by correlating replies with in-flight requests through a request id
// carried on every message, and by running a background housekeeper that
// times out requests which never receive a reply.
//
// # Quick start
//
//	c, err := shadow.New("tcp://localhost:1883", "thermostat-42",
//	    shadow.WithCredentials("user", "pass"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Connect(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	err = c.Update(context.Background(), json.RawMessage(`{"led":"on"}`),
//	    func(action shadow.Action, status shadow.StatusCode, ack *shadow.Ack, ctx any) {
//	        log.Printf("update %s: %s", action, status)
//	    }, nil, 10*time.Second)
package shadow
