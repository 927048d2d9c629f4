package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func resetRegistry() {
	reg.mu.Lock()
	reg.loggers = make(map[string]*slog.Logger)
	reg.levels = make(map[string]*slog.LevelVar)
	reg.config = Config{}
	reg.ready = false
	reg.buffer = nil
	reg.callback = nil
	reg.mu.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetRegistry()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"driver": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"driver", true, true, true},
		{"api", false, false, true},
		{"uvc", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetRegistry()

	before := GetLogger("driver")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"driver": "debug"},
	})

	after := GetLogger("driver")
	if before != after {
		t.Error("GetLogger should return the cached logger after Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should pick up the configured debug level")
	}
}

func TestBufferCapturesEntries(t *testing.T) {
	resetRegistry()

	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("driver")
	logger.Info("streaming started", "width", 1280, "height", 720)
	logger.Warn("dropping frame", "reason", "zero dimensions")

	entries := GetBuffer().ReadAll()
	if len(entries) != 2 {
		t.Fatalf("buffer holds %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.Module != "driver" || first.Level != "info" {
		t.Errorf("first entry = %s/%s, want driver/info", first.Module, first.Level)
	}
	if first.Message != "streaming started" {
		t.Errorf("first message = %q", first.Message)
	}
	if first.Attributes["width"] != int64(1280) {
		t.Errorf("width attribute = %v (%T)", first.Attributes["width"], first.Attributes["width"])
	}
	if entries[1].Level != "warn" {
		t.Errorf("second entry level = %q, want warn", entries[1].Level)
	}
}

func TestLogCallbackFires(t *testing.T) {
	resetRegistry()

	Initialize(Config{Level: "info", Format: "text"})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) { got = append(got, entry) })

	GetLogger("api").Info("request handled", "status", 200)

	if len(got) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(got))
	}
	if got[0].Module != "api" || got[0].Message != "request handled" {
		t.Errorf("callback entry = %+v", got[0])
	}
}

func TestRingBufferWraps(t *testing.T) {
	buf := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Write(LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	if buf.Count() != 3 {
		t.Fatalf("count = %d, want 3", buf.Count())
	}

	entries := buf.ReadAll()
	want := []string{"entry 2", "entry 3", "entry 4"}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, w)
		}
	}
}

func TestRingBufferPartial(t *testing.T) {
	buf := NewRingBuffer(10)
	if buf.ReadAll() != nil {
		t.Error("empty buffer should read nil")
	}

	buf.Write(LogEntry{Message: "only"})
	entries := buf.ReadAll()
	if len(entries) != 1 || entries[0].Message != "only" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestMultiHandlerFansOutOnce(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler))
	logger.Debug("debug only message")

	if got := strings.Count(buf.String(), "debug only message"); got != 1 {
		t.Errorf("debug message written %d times, want 1 (only the debug handler)", got)
	}

	buf.Reset()
	logger.Info("info message")
	if got := strings.Count(buf.String(), "info message"); got != 2 {
		t.Errorf("info message written %d times, want 2 (both handlers)", got)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseLevel(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Level:   "warn",
		Module:  "driver",
		Message: "dropping frame",
		Attributes: map[string]any{
			"width":  0,
			"height": 480,
		},
	}

	line := FormatLogLine(entry)
	if !strings.Contains(line, "[WARN] [driver] dropping frame") {
		t.Errorf("line = %q", line)
	}
	// Attributes are appended sorted by key.
	if !strings.HasSuffix(line, "height=480 width=0") {
		t.Errorf("attribute order wrong: %q", line)
	}
}
