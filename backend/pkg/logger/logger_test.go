package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{"debug level text", &Config{Level: "debug", Format: "text"}, "level=INFO"},
		{"info level json", &Config{Level: "info", Format: "json"}, `"level":"INFO"`},
		{"default level", &Config{Level: "invalid", Format: "text"}, "level=INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf
			Init(tt.config)
			slog.Info("test message")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWithContextCarriesKeys(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, UsernameKey, "director")
	ctx = WithContractID(ctx, "c1")

	Info(ctx, "signed")

	out := buf.String()
	for _, want := range []string{"request_id=req-123", "username=director", "contract_id=c1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.Background()
	calls := []struct {
		log func(context.Context, string, ...any)
		msg string
	}{
		{Info, "info message"},
		{Debug, "debug message"},
		{Warn, "warn message"},
		{Error, "error message"},
	}
	for _, c := range calls {
		buf.Reset()
		c.log(ctx, c.msg, "key", "value")
		if !strings.Contains(buf.String(), c.msg) {
			t.Errorf("Expected %q in log", c.msg)
		}
	}
}

func TestGormWriter(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	gormWriter{}.Printf("slow sql %d ms\n", 1200)
	if !strings.Contains(buf.String(), "component=gorm") {
		t.Errorf("Expected gorm component in %q", buf.String())
	}
	if Gorm("debug") == nil {
		t.Error("Expected non-nil gorm logger")
	}
}
