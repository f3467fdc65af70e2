package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFieldMap(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("debug", &buf)

	log.WithField("order_id", 1).Warn("ipn rejected")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ipn rejected", got["message"])
	assert.Equal(t, "warning", got["severity"])
	assert.Contains(t, got, "timestamp")
	assert.EqualValues(t, 1, got["order_id"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := New("loud")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
