package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestSetup_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(os.Stdout)
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}()
	require.NoError(t, Setup(Config{Level: "warn", Format: "json"}))

	l := New("benders")
	l.Infof("hidden")
	l.Warnf("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "benders", entry["component"])
	assert.Equal(t, "shown 2", entry["message"])
	assert.Equal(t, "warn", entry["level"])
}

func TestSetup_EnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	require.NoError(t, Setup(Config{Level: "debug", Format: "json"}))
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{Level: "info", Format: "json"}, true},
		{"console", Config{Level: "debug", Format: "console"}, true},
		{"bad level", Config{Level: "loud", Format: "json"}, false},
		{"bad format", Config{Level: "info", Format: "xml"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
