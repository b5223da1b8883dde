package notify

import (
	"bytes"
	"testing"
)

func TestConsoleWritesOneLinePerNotice(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Success("saved")
	c.Error("boom")

	want := "✓ saved\n✗ boom\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestRecorderCountsByLevel(t *testing.T) {
	var r Recorder
	r.Warn("a")
	r.Warn("b")
	r.Error("c")

	if r.Count(LevelWarning) != 2 {
		t.Fatalf("expected 2 warnings, got %d", r.Count(LevelWarning))
	}
	last, ok := r.Last()
	if !ok || last.Message != "c" || last.Level != LevelError {
		t.Fatalf("unexpected last notice %+v", last)
	}
	if len(r.Notices()) != 3 {
		t.Fatalf("expected 3 notices, got %d", len(r.Notices()))
	}
}
