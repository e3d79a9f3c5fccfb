package logx

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"all":     zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"none":    zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	if w := writer("json", &buf); w != &buf {
		t.Fatalf("json format should write directly to output")
	}
	if _, ok := writer("console", &buf).(zerolog.ConsoleWriter); !ok {
		t.Fatalf("console format should use ConsoleWriter")
	}
}

func TestConnLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Log
	defer func() { Log = prev }()
	Log = zerolog.New(&buf)
	l := Conn(5, "abc")
	l.Info().Msg("hello")
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte(`"fd":5`)) || !bytes.Contains([]byte(out), []byte(`"session_id":"abc"`)) {
		t.Fatalf("unexpected log line %s", out)
	}
}
