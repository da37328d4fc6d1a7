package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)
		assert.Equal(t, logrus.DebugLevel, log.GetLevel())

		log.WithField("folder", "Default/tel:+33600000001").Info("Folder synchronized")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Folder synchronized", entry["msg"])
		assert.Equal(t, "Default/tel:+33600000001", entry["folder"])
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log := NewWithWriter(&config.Config{LogLevel: "chatty", LogFormat: "text"}, &bytes.Buffer{})
		assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	})
}
