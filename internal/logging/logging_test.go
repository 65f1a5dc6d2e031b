package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("streams")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("stream located", KeyHandle, "42")

	out := buf.String()
	if !strings.Contains(out, "msg=\"stream located\"") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=streams") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "handle=42") {
		t.Fatalf("expected handle field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("recorder")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	WithRequest(L("host"), "req-1", "record").Debug("dispatch")

	out := buf.String()
	if !strings.Contains(out, `"requestId":"req-1"`) {
		t.Fatalf("expected JSON requestId field, got: %s", out)
	}
	if !strings.Contains(out, `"command":"record"`) {
		t.Fatalf("expected JSON command field, got: %s", out)
	}
}

func TestInitSwitchesFormatsInPlace(t *testing.T) {
	logger := L("host")

	var text1, js, text2 bytes.Buffer
	Init("text", "info", &text1)
	logger.Info("first")
	Init("json", "info", &js)
	logger.Info("second")
	Init("text", "info", &text2)
	logger.Info("third")

	if !strings.Contains(text1.String(), "msg=first") || !strings.Contains(text1.String(), "component=host") {
		t.Fatalf("text output before switch: %q", text1.String())
	}
	if !strings.Contains(js.String(), `"msg":"second"`) || !strings.Contains(js.String(), `"component":"host"`) {
		t.Fatalf("json output after switch: %q", js.String())
	}
	if strings.Contains(js.String(), "first") || strings.Contains(js.String(), "third") {
		t.Fatalf("json sink received records from other phases: %q", js.String())
	}
	if !strings.Contains(text2.String(), "msg=third") {
		t.Fatalf("text output after switching back: %q", text2.String())
	}
}

func TestGroupedLoggerSurvivesSwitch(t *testing.T) {
	logger := L("recorder").WithGroup("child").With(KeyPID, 42)

	var buf bytes.Buffer
	Init("json", "info", &buf)
	logger.Info("spawned")

	if !strings.Contains(buf.String(), `"child":{"pid":42}`) {
		t.Fatalf("expected grouped attrs, got: %s", buf.String())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}

	var buf bytes.Buffer
	Init("text", "info", &buf)
	tagged := L("capture").With("requestId", "abc")
	ctx := NewContext(context.Background(), tagged)
	FromContext(ctx).Info("from context")

	if !strings.Contains(buf.String(), "requestId=abc") {
		t.Fatalf("expected context logger attrs, got: %s", buf.String())
	}
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error"} {
		if !ValidLevel(lvl) {
			t.Errorf("ValidLevel(%q) = false, want true", lvl)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true, want false")
	}
}

func TestOpenFileWritesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "host.log")
	sink, err := OpenFile(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := sink.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log file missing content: %q", data)
	}
}
