package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogCategories(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("engine", "created rate=%d", 48000)
	out := buf.String()
	if !strings.Contains(out, "cat=engine") || !strings.Contains(out, "created rate=48000") {
		t.Errorf("log line = %q", out)
	}
}

func TestDisabledLogIsSilent(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()

	Log("engine", "dropped")
	if buf.Len() != 0 {
		t.Errorf("disabled log wrote %q", buf.String())
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for i := 0; i < 10; i++ {
		LogEvery(5, "midi", "clock %s", "tick")
	}
	if n := strings.Count(buf.String(), "clock tick"); n != 2 {
		t.Errorf("LogEvery wrote %d lines, want 2", n)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer func() {
		SetLevel("debug")
		Disable()
	}()

	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}
	Log("engine", "hidden")
	Warn("engine", "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log = %q", buf.String())
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel accepted an unknown level")
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "debug.log")
	if err := Enable(path); err != nil {
		t.Fatal(err)
	}
	Log("test", "hello")
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}
