package util

import (
	"reflect"
	"testing"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCleanArg(t *testing.T) {
	if got := CleanArg(`  "28.6,79.8"  `); got != "28.6,79.8" {
		t.Errorf("CleanArg = %q", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		command string
		args    []string
	}{
		{"empty", "   ", "", nil},
		{"command only", ":STATUS:", ":STATUS:", nil},
		{"lowercase command", ":marker:list:", ":MARKER:LIST:", nil},
		{"plain args", ":MARKER:UPDATE: 2 28.6,79.8", ":MARKER:UPDATE:", []string{"2", "28.6,79.8"}},
		{"quoted arg", `:MARKER:ADD: "28.6, 79.8" false`, ":MARKER:ADD:", []string{"28.6, 79.8", "false"}},
		{"escaped quote", `:DEVICE:ERROR: "sensor ""gps"" lost"`, ":DEVICE:ERROR:", []string{`sensor "gps" lost`}},
		{"extra spaces", "  :MARKER:REMOVE:    0  ", ":MARKER:REMOVE:", []string{"0"}},
		{"empty quoted arg", `:DEVICE:ERROR: ""`, ":DEVICE:ERROR:", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args := ParseLine(tt.line)
			if command != tt.command {
				t.Errorf("command = %q, want %q", command, tt.command)
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %q, want %q", args, tt.args)
			}
		})
	}
}
