package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_IncludesRunContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("run-001", "attempt1").WithOutput(&buf)

	l.Info("case started", map[string]any{"case_id": "case-1"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (line: %s)", err, buf.String())
	}
	if entry["run_id"] != "run-001" {
		t.Errorf("expected run_id=run-001, got %v", entry["run_id"])
	}
	if entry["run_instance_id"] != "attempt1" {
		t.Errorf("expected run_instance_id=attempt1, got %v", entry["run_instance_id"])
	}
	if entry["message"] != "case started" {
		t.Errorf("expected message=case started, got %v", entry["message"])
	}
}

func TestLogger_LevelsWriteDistinctLevelField(t *testing.T) {
	cases := []struct {
		name string
		log  func(l *Logger)
		want string
	}{
		{"debug", func(l *Logger) { l.Debug("m", nil) }, "debug"},
		{"warn", func(l *Logger) { l.Warn("m", nil) }, "warn"},
		{"error", func(l *Logger) { l.Error("m", nil) }, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger("run-001", "attempt1").WithOutput(&buf)
			tc.log(l)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("unmarshal log line: %v", err)
			}
			if entry["level"] != tc.want {
				t.Errorf("expected level=%s, got %v", tc.want, entry["level"])
			}
		})
	}
}

func TestSugaredLogger_FormatsTemplate(t *testing.T) {
	var buf bytes.Buffer
	sugar := NewLogger("run-001", "attempt1").WithOutput(&buf).Sugar()

	sugar.Infof("blocked %d of %d actions", 2, 10)

	if !strings.Contains(buf.String(), "blocked 2 of 10 actions") {
		t.Errorf("expected formatted message in output, got: %s", buf.String())
	}
}
