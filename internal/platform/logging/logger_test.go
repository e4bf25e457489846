package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "json", &buf)
	l.Debug().Str("component", "mint").Msg("hello")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if m["app"] != "candymint" || m["component"] != "mint" || m["message"] != "hello" || m["level"] != "debug" {
		t.Errorf("entry = %v", m)
	}
}

func TestNewLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := New("chatty", "json", &buf)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q", out)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "", &buf)
	l.Info().Msg("plain")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("console format should not be json: %q", buf.String())
	}
}
