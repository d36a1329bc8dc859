package shadow

import "testing"

func TestBuildTopicContract(t *testing.T) {
	tc := buildTopicContract("baidu/iot/shadow", "thermostat-42")

	want := map[string]string{
		"update":         "baidu/iot/shadow/thermostat-42/update",
		"get":            "baidu/iot/shadow/thermostat-42/get",
		"delete":         "baidu/iot/shadow/thermostat-42/delete",
		"updateAccepted": "baidu/iot/shadow/thermostat-42/update/accepted",
		"updateRejected": "baidu/iot/shadow/thermostat-42/update/rejected",
		"getAccepted":    "baidu/iot/shadow/thermostat-42/get/accepted",
		"getRejected":    "baidu/iot/shadow/thermostat-42/get/rejected",
		"deleteAccepted": "baidu/iot/shadow/thermostat-42/delete/accepted",
		"deleteRejected": "baidu/iot/shadow/thermostat-42/delete/rejected",
		"delta":          "baidu/iot/shadow/thermostat-42/delta",
		"deltaRejected":  "baidu/iot/shadow/thermostat-42/delta/rejected",
	}
	got := map[string]string{
		"update": tc.update, "get": tc.get, "delete": tc.delete,
		"updateAccepted": tc.updateAccepted, "updateRejected": tc.updateRejected,
		"getAccepted": tc.getAccepted, "getRejected": tc.getRejected,
		"deleteAccepted": tc.deleteAccepted, "deleteRejected": tc.deleteRejected,
		"delta": tc.delta, "deltaRejected": tc.deltaRejected,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s = %q, want %q", k, got[k], w)
		}
	}

	if len(tc.subscribeTopics) != 7 {
		t.Fatalf("subscribeTopics has %d entries, want 7", len(tc.subscribeTopics))
	}
	seen := make(map[string]bool, len(tc.subscribeTopics))
	for _, topic := range tc.subscribeTopics {
		if seen[topic] {
			t.Errorf("subscribeTopics contains duplicate %q", topic)
		}
		seen[topic] = true
	}
}

func TestSendTopicFor(t *testing.T) {
	tc := buildTopicContract(DefaultTopicPrefix, "dev1")

	tests := []struct {
		action  Action
		want    string
		wantErr bool
	}{
		{ActionUpdate, tc.update, false},
		{ActionGet, tc.get, false},
		{ActionDelete, tc.delete, false},
		{Action(99), "", true},
	}
	for _, tt := range tests {
		got, err := tc.sendTopicFor(tt.action)
		if (err != nil) != tt.wantErr {
			t.Errorf("sendTopicFor(%v) error = %v, wantErr %v", tt.action, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("sendTopicFor(%v) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tc := buildTopicContract(DefaultTopicPrefix, "dev1")

	tests := []struct {
		name       string
		topic      string
		wantOK     bool
		wantDelta  bool
		wantAction Action
		wantStatus StatusCode
	}{
		{"update accepted", tc.updateAccepted, true, false, ActionUpdate, Accepted},
		{"update rejected", tc.updateRejected, true, false, ActionUpdate, Rejected},
		{"get accepted", tc.getAccepted, true, false, ActionGet, Accepted},
		{"get rejected", tc.getRejected, true, false, ActionGet, Rejected},
		{"delete accepted", tc.deleteAccepted, true, false, ActionDelete, Accepted},
		{"delete rejected", tc.deleteRejected, true, false, ActionDelete, Rejected},
		{"delta", tc.delta, true, true, 0, 0},
		{"case-insensitive", "BAIDU/IOT/SHADOW/dev1/UPDATE/ACCEPTED", true, false, ActionUpdate, Accepted},
		{"unknown topic", "baidu/iot/shadow/dev1/unknown", false, false, 0, 0},
		{"prefix match is not enough", tc.update + "/extra", false, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := tc.classify(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("classify(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if kind.isDelta != tt.wantDelta {
				t.Errorf("classify(%q) isDelta = %v, want %v", tt.topic, kind.isDelta, tt.wantDelta)
			}
			if !kind.isDelta {
				if kind.action != tt.wantAction {
					t.Errorf("classify(%q) action = %v, want %v", tt.topic, kind.action, tt.wantAction)
				}
				if kind.status != tt.wantStatus {
					t.Errorf("classify(%q) status = %v, want %v", tt.topic, kind.status, tt.wantStatus)
				}
			}
		})
	}
}
