package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"masader/internal/logger"
)

func TestStandardLoggerVerbosity(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStandardLogger(&buf)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Errorf("bad %s", "thing")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO:  shown 2")
	assert.Contains(t, out, "ERROR: bad thing")
}

func TestVerboseLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewVerboseLogger(&buf).WithPrefix("[refresh] ")

	l.Debugf("starting")

	assert.True(t, strings.Contains(buf.String(), "[refresh] DEBUG: starting"), buf.String())
}

func TestBufferLogger(t *testing.T) {
	l := logger.NewBufferLogger()
	l.Warnf("schema mismatch at record %d", 3)

	assert.Equal(t, "WARN:  schema mismatch at record 3\n", l.String())
}
