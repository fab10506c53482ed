package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sitepipe/internal/config"
)

func TestSetupWithWriter_Levels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		emit    func(*slog.Logger)
		want    []string
		notWant []string
	}{
		{
			name: "text",
			cfg:  config.Config{LogLevel: "debug", LogFormat: "text"},
			emit: func(l *slog.Logger) { l.Info("css done") },
			want: []string{"msg=\"css done\""},
		},
		{
			name: "json",
			cfg:  config.Config{LogLevel: "info", LogFormat: "json"},
			emit: func(l *slog.Logger) { l.Info("js done") },
			want: []string{`"msg":"js done"`},
		},
		{
			name:    "quiet keeps errors only",
			cfg:     config.Config{LogLevel: "info", LogFormat: "text", Quiet: true},
			emit:    func(l *slog.Logger) { l.Info("copied fonts"); l.Error("images failed") },
			want:    []string{"images failed"},
			notWant: []string{"copied fonts"},
		},
		{
			name: "debug shows debug",
			cfg:  config.Config{LogLevel: "debug", LogFormat: "text"},
			emit: func(l *slog.Logger) { l.Debug("cache hit") },
			want: []string{"cache hit"},
		},
		{
			name:    "info hides debug",
			cfg:     config.Config{LogLevel: "info", LogFormat: "text"},
			emit:    func(l *slog.Logger) { l.Debug("cache miss") },
			notWant: []string{"cache miss"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			cfg := tt.cfg
			logger := SetupWithWriter(&cfg, &buf)
			require.NotNil(t, logger)

			tt.emit(logger)

			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}

			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestSetup_SetsDefault(t *testing.T) {
	logger := Setup(&config.Config{LogLevel: "warn", LogFormat: "text"})
	assert.Equal(t, logger.Handler(), slog.Default().Handler())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := NewContext(context.Background(), logger)
	got := FromContext(ctx)
	assert.Equal(t, logger, got)
}

func TestFromContext_FallbackToDefault(t *testing.T) {
	got := FromContext(context.Background())
	assert.Equal(t, slog.Default(), got)
}

func TestSetup_TextUsesShortTime(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{LogLevel: "info", LogFormat: "text"}

	SetupWithWriter(cfg, &buf).Info("built")
	assert.Regexp(t, regexp.MustCompile(`^time=\d{2}:\d{2}:\d{2}\.\d{3} level=INFO msg=built`), buf.String())
}

func TestSetup_JSONKeepsFullTime(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{LogLevel: "info", LogFormat: "json"}

	SetupWithWriter(cfg, &buf).Info("built")
	assert.Regexp(t, regexp.MustCompile(`"time":"\d{4}-\d{2}-\d{2}T`), buf.String())
}

func TestNew_DoesNotReplaceDefault(t *testing.T) {
	before := slog.Default()

	logger := New(&config.Config{LogLevel: "info", LogFormat: "text"}, &bytes.Buffer{})
	require.NotNil(t, logger)
	assert.Same(t, before, slog.Default())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&config.Config{LogLevel: "info", LogFormat: "text"}, &buf)
	ctx := With(NewContext(context.Background(), logger), slog.String("task", "css"))

	FromContext(ctx).Info("finished")
	assert.Contains(t, buf.String(), "task=css")
}
