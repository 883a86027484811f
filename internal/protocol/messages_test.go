package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage_Ping(t *testing.T) {
	msgType, msg, err := ParseClientMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypePing {
		t.Fatalf("expected type %q, got %q", TypePing, msgType)
	}
	if _, ok := msg.(PingMsg); !ok {
		t.Fatalf("expected PingMsg, got %T", msg)
	}
}

func TestParseClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"student_id":1}`},
		{"empty type", `{"type":""}`},
		{"server only type", `{"type":"match_suggested"}`},
		{"unknown type", `{"type":"subscribe_all"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tt.input)); err == nil {
				t.Fatalf("expected error for %s", tt.input)
			}
		})
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	out, err := NewServerMessage(TypeMatchSuggested, MatchSuggestedMsg{
		Type:       "wrong",
		MatchID:    "m-1",
		MentorID:   4,
		MatchScore: 66.67,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got MatchSuggestedMsg
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeMatchSuggested {
		t.Errorf("type = %q, want %q", got.Type, TypeMatchSuggested)
	}
	if got.MatchID != "m-1" || got.MentorID != 4 || got.MatchScore != 66.67 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestNewServerMessage_Unmarshalable(t *testing.T) {
	if _, err := NewServerMessage(TypeError, make(chan int)); err == nil {
		t.Fatal("expected error for unmarshalable payload")
	}
}
