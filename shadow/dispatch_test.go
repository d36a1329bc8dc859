package shadow

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		device:   "dev1",
		topics:   buildTopicContract(DefaultTopicPrefix, "dev1"),
		inFlight: newInFlightTable(4, nil),
		deltas:   newDeltaRegistry(4),
		logger:   slog.Default(),
	}
}

func TestOnMessageArrivedRoutesAcceptedReply(t *testing.T) {
	c := newTestClient(t)
	var gotStatus StatusCode
	var gotAck *Ack
	if err := c.inFlight.insert("req-1", ActionGet, func(_ Action, status StatusCode, ack *Ack, _ any) {
		gotStatus, gotAck = status, ack
	}, nil, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}

	payload := []byte(`{"requestId":"req-1","reported":{"led":"on"}}`)
	c.onMessageArrived(c.topics.getAccepted, payload)

	if gotStatus != Accepted {
		t.Fatalf("status = %v, want Accepted", gotStatus)
	}
	if gotAck == nil || string(gotAck.Document) != string(payload) {
		t.Fatalf("ack document = %v, want the raw payload", gotAck)
	}
}

func TestOnMessageArrivedRoutesRejectedReply(t *testing.T) {
	c := newTestClient(t)
	var gotStatus StatusCode
	var gotAck *Ack
	if err := c.inFlight.insert("req-2", ActionDelete, func(_ Action, status StatusCode, ack *Ack, _ any) {
		gotStatus, gotAck = status, ack
	}, nil, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}

	payload := []byte(`{"requestId":"req-2","code":"400","message":"bad state"}`)
	c.onMessageArrived(c.topics.deleteRejected, payload)

	if gotStatus != Rejected {
		t.Fatalf("status = %v, want Rejected", gotStatus)
	}
	if gotAck == nil || gotAck.Code != "400" || gotAck.Message != "bad state" {
		t.Fatalf("ack = %+v, want Code=400 Message=\"bad state\"", gotAck)
	}
}

func TestOnMessageArrivedDropsTooShortPayload(t *testing.T) {
	c := newTestClient(t)
	// Must not panic even though the payload can't possibly parse.
	c.onMessageArrived(c.topics.getAccepted, []byte("{"))
}

func TestOnMessageArrivedDropsUnrecognizedTopic(t *testing.T) {
	c := newTestClient(t)
	// Must not panic; the message is simply logged and dropped.
	c.onMessageArrived("baidu/iot/shadow/dev1/unknown", []byte(`{"requestId":"x"}`))
}

func TestOnMessageArrivedDispatchesDeltaToRootHandler(t *testing.T) {
	c := newTestClient(t)
	var gotDesired json.RawMessage
	if err := c.deltas.register(RootKey, func(_ string, desired json.RawMessage) *UserError {
		gotDesired = desired
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.onMessageArrived(c.topics.delta, []byte(`{"requestId":"req-3","desired":{"led":"on"}}`))

	if string(gotDesired) != `{"led":"on"}` {
		t.Fatalf("root handler desired = %s, want {\"led\":\"on\"}", gotDesired)
	}
}
