package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogErrorFields(t *testing.T) {
	var buf bytes.Buffer
	logg := NewWithOutput("info", "json", &buf)
	LogError(logg, "engine", "Export", "org-1", map[string]any{"count": 2}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "engine", entry["module"])
	assert.Equal(t, "Export", entry["funcName"])
	assert.Equal(t, "org-1", entry["context"])
	assert.NotNil(t, entry["data"])
}

func TestLevelFallback(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, New("nonsense", "text").GetLevel())
	assert.Equal(t, logrus.DebugLevel, New("debug", "json").GetLevel())
}
