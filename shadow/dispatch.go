package shadow

import (
	"context"
	"encoding/json"
	"time"
)

// minValidPayloadLen is the shortest payload handed to the JSON parser;
// anything shorter, including a bare "{}", is dropped silently.
const minValidPayloadLen = 3

// deltaEnvelope is the wire shape of an inbound delta message.
type deltaEnvelope struct {
	RequestID string                     `json:"requestId"`
	Desired   map[string]json.RawMessage `json:"desired"`
}

// replyEnvelope is the wire shape of an inbound accepted/rejected reply. All
// fields are read loosely: accepted replies carry arbitrary document fields
// in addition to requestId, so the raw body doubles as the Ack's document.
type replyEnvelope struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// onMessageArrived is the transport's single inbound entry point. It
// performs the exact-topic classification described by the shadow engine: a
// delta is routed to the delta registry, an accepted/rejected reply is
// routed to the in-flight table, and anything else is logged and dropped.
func (c *Client) onMessageArrived(topic string, payload []byte) {
	if len(payload) < minValidPayloadLen {
		return
	}

	kind, ok := c.topics.classify(topic)
	if !ok {
		c.logger.Error("shadow: message on unrecognized topic", "device", c.device, "topic", topic)
		return
	}

	if kind.isDelta {
		c.handleDelta(payload)
		return
	}
	c.handleReply(kind.action, kind.status, payload)
}

func (c *Client) handleReply(action Action, status StatusCode, payload []byte) {
	var env replyEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Error("shadow: failed to parse reply payload", "device", c.device, "action", action, "error", err)
		return
	}
	if env.RequestID == "" {
		c.logger.Error("shadow: reply missing requestId", "device", c.device, "action", action)
		return
	}

	var ack *Ack
	if status == Accepted {
		ack = &Ack{Document: payload}
	} else {
		ack = &Ack{Code: env.Code, Message: env.Message}
	}

	if !c.inFlight.complete(env.RequestID, status, ack) {
		// NO_MATCHING_IN_FLIGHT: informational, never surfaced to callers.
		c.logger.Debug("shadow: no matching in-flight entry", "device", c.device, "requestId", env.RequestID)
	}
}

func (c *Client) handleDelta(payload []byte) {
	var env deltaEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Error("shadow: failed to parse delta payload", "device", c.device, "error", err)
		return
	}

	uerr := c.deltas.dispatch(env.Desired)
	if uerr == nil {
		return
	}
	if uerr.Release != nil {
		defer uerr.Release()
	}

	rejection, err := json.Marshal(struct {
		RequestID string `json:"requestId"`
		Code      string `json:"code"`
		Message   string `json:"message"`
	}{RequestID: env.RequestID, Code: uerr.Code, Message: uerr.Message})
	if err != nil {
		c.logger.Error("shadow: failed to encode delta rejection", "device", c.device, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.tr.publish(ctx, c.topics.deltaRejected, rejection); err != nil {
		c.logger.Error("shadow: failed to publish delta rejection", "device", c.device, "error", err)
	}
}
