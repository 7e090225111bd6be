package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_QuietByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf, false)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected info to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("Expected warning in output, got: %s", output)
	}
}

func TestNew_Verbose(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf, true)

	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}
}

func TestWithFieldsAndComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Component(WithFields(NewWithWriter(buf), map[string]interface{}{"run_id": "abc"}), "pipeline")

	log.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{`"run_id":"abc"`, `"component":"pipeline"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %s, got: %s", want, output)
		}
	}
}
