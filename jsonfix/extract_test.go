package jsonfix

import (
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare object",
			raw:  `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "narrative around object",
			raw:  "Here is your plan:\n{\"a\":1}\nEnjoy!",
			want: `{"a":1}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"a\":{\"b\":2}}\n```\nNotes follow {not json}",
			want: `{"a":{"b":2}}`,
		},
		{
			name: "plain fence",
			raw:  "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "unterminated fence",
			raw:  "```json\n{\"a\":[1,2",
			want: `{"a":[1,2`,
		},
		{
			name: "no brace returns slice unchanged",
			raw:  "sorry, I cannot help",
			want: "sorry, I cannot help",
		},
		{
			name: "truncated object keeps tail",
			raw:  `prefix {"a":[{"b":1`,
			want: `{"a":[{"b":1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.raw); got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\":1}\n```",
		"text {\"x\": {\"y\": [1, 2]}} more",
		"no json here",
		`{"open": [1`,
		"} stray {",
	}

	for _, in := range inputs {
		once := Extract(in)
		if twice := Extract(once); twice != once {
			t.Errorf("input %q: second pass changed %q to %q", in, once, twice)
		}
	}
}
