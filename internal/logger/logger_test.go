package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	log.Info().Str("exam_id", "e42").Msg("mounted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["exam_id"] != "e42" || entry["service"] != "solvex-session" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	New(&bytes.Buffer{}, "loud", "json")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
}
