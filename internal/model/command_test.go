package model

import (
	"encoding/json"
	"testing"
)

func TestParseCommand_PreservesWireForm(t *testing.T) {
	raw := `{"id":"c1","type":"command","name":"status","payload":{"battery":80},"createdAtTime":1700000000000,"extra":"kept"}`

	cmd, err := ParseCommand([]byte(raw))
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	if cmd.Name != "status" {
		t.Errorf("Name = %q, want %q", cmd.Name, "status")
	}
	if cmd.Type != CommandTypeCommand {
		t.Errorf("Type = %q, want %q", cmd.Type, CommandTypeCommand)
	}

	out, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != raw {
		t.Errorf("Marshal() = %s, want %s", out, raw)
	}
}

func TestCommand_UnmarshalJSONNested(t *testing.T) {
	var env struct {
		Data Command `json:"data"`
	}
	raw := `{"data":{"id":"x","type":"sync","name":"syncOffset","payload":{"syncOffset":12.5},"createdAtTime":1}}`
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	var p SyncOffsetPayload
	if err := env.Data.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.SyncOffset == nil || *p.SyncOffset != 12.5 {
		t.Errorf("SyncOffset = %v, want 12.5", p.SyncOffset)
	}
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand(CommandTypeHub, NameNotification, SourceController, "robot1", NotificationPayload{
		Event:           NotificationSubscribedTo,
		TargetAccountID: "robot1",
	})

	if cmd.ID == "" {
		t.Error("expected a generated id")
	}
	if cmd.CreatedAtTime == 0 {
		t.Error("expected createdAtTime to be set")
	}

	out, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	payload, _ := decoded["payload"].(map[string]any)
	if payload["event"] != "subscribed-to" {
		t.Errorf("payload.event = %v, want subscribed-to", payload["event"])
	}
	if payload["targetAccountId"] != "robot1" {
		t.Errorf("payload.targetAccountId = %v, want robot1", payload["targetAccountId"])
	}
}

func TestDecodePayload_Empty(t *testing.T) {
	cmd := Command{Name: "tts"}
	var p TextRequestPayload
	if err := cmd.DecodePayload(&p); err != ErrNoPayload {
		t.Errorf("DecodePayload() error = %v, want ErrNoPayload", err)
	}
}

func TestTextRequest(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantText   string
		wantTarget string
		wantOK     bool
	}{
		{
			name:       "payload target",
			raw:        `{"type":"hubCommand","name":"tts","payload":{"inputText":"hello","targetAccountId":"robot1"}}`,
			wantText:   "hello",
			wantTarget: "robot1",
			wantOK:     true,
		},
		{
			name:       "command target wins",
			raw:        `{"type":"hubCommand","name":"tts","targetAccountId":"robot2","payload":{"inputText":"hi","targetAccountId":"robot1"}}`,
			wantText:   "hi",
			wantTarget: "robot2",
			wantOK:     true,
		},
		{
			name:   "missing text",
			raw:    `{"type":"hubCommand","name":"tts","payload":{"targetAccountId":"robot1"}}`,
			wantOK: false,
		},
		{
			name:   "missing target",
			raw:    `{"type":"hubCommand","name":"tts","payload":{"inputText":"hello"}}`,
			wantOK: false,
		},
		{
			name:   "no payload",
			raw:    `{"type":"hubCommand","name":"tts"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseCommand failed: %v", err)
			}
			text, target, ok := cmd.TextRequest()
			if ok != tt.wantOK {
				t.Fatalf("TextRequest() ok = %v, want %v", ok, tt.wantOK)
			}
			if text != tt.wantText || target != tt.wantTarget {
				t.Errorf("TextRequest() = (%q, %q), want (%q, %q)", text, target, tt.wantText, tt.wantTarget)
			}
		})
	}
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame("message", Message{Source: SourceHub, Event: "handshake"})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	out, _ := json.Marshal(f)
	want := `{"event":"message","data":{"source":"RCH","event":"handshake"}}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}

	f, _ = NewFrame("asrSOS", nil)
	out, _ = json.Marshal(f)
	if string(out) != `{"event":"asrSOS"}` {
		t.Errorf("Marshal() = %s, want %s", out, `{"event":"asrSOS"}`)
	}
}
