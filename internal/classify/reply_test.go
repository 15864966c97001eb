package classify

import (
	"errors"
	"testing"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		ok      bool
	}{
		{"plain array", `[{"surfaceForm":"dog","proposedCode":"A.1.1.1","confidence":0.93}]`, 1, true},
		{"fenced", "```json\n[{\"surfaceForm\":\"dog\",\"proposedCode\":\"A.1\",\"confidence\":0.8}]\n```", 1, true},
		{"with commentary", "Here you go:\n[{\"surfaceForm\":\"a\",\"proposedCode\":\"A\",\"confidence\":0.7},{\"surfaceForm\":\"b\",\"proposedCode\":\"B.1\",\"confidence\":0.9}]", 2, true},
		{"empty array", `[]`, 0, true},
		{"prose", "I am not sure about these.", 0, false},
		{"object not array", `{"surfaceForm":"dog","proposedCode":"A.1","confidence":0.8}`, 0, false},
		{"missing field", `[{"surfaceForm":"dog","confidence":0.8}]`, 0, false},
		{"confidence out of range", `[{"surfaceForm":"dog","proposedCode":"A.1","confidence":1.4}]`, 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := ParseReply(tt.content)
			if reply.OK() != tt.ok {
				t.Fatalf("OK() = %v, want %v (err %v)", reply.OK(), tt.ok, reply.Unparseable)
			}
			if !tt.ok {
				if !errors.Is(reply.Unparseable, ErrUnparseable) {
					t.Errorf("Unparseable = %v, want ErrUnparseable", reply.Unparseable)
				}
				return
			}
			if len(reply.Proposals) != tt.want {
				t.Errorf("proposals = %d, want %d", len(reply.Proposals), tt.want)
			}
		})
	}
}
