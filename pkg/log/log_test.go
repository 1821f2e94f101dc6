package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// TestGetLogLevel is a function.
func TestGetLogLevel(t *testing.T) {
	type scenario struct {
		level    string
		expected logrus.Level
	}

	scenarios := []scenario{
		{"debug", logrus.DebugLevel},
		{"warning", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, getLogLevel(s.level))
	}
}

func TestTerminalLoggerRespectsLevel(t *testing.T) {
	var out bytes.Buffer
	log := newTerminalLogger(&out, "warning")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}

func TestNewLoggerWritesDevelopmentLog(t *testing.T) {
	dir := t.TempDir()
	appConfig := &config.AppConfig{
		Name:      "gdev",
		Version:   "unversioned",
		Debug:     true,
		ConfigDir: dir,
	}

	log := NewLogger(appConfig, "error")
	log.WithField("target", "production").Debug("composing")

	content, err := os.ReadFile(filepath.Join(dir, "development.log"))
	assert.NoError(t, err)

	entry := map[string]interface{}{}
	assert.NoError(t, json.Unmarshal(bytes.TrimSpace(content), &entry))
	assert.EqualValues(t, "composing", entry["msg"])
	assert.EqualValues(t, "production", entry["target"])
	assert.EqualValues(t, "unversioned", entry["version"])
}
