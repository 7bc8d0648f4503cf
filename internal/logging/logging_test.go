package logging

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestCaptureRetainsRecentLines(t *testing.T) {
	c := NewCapture(3)
	for i := 0; i < 5; i++ {
		_, err := c.Write([]byte(fmt.Sprintf("line %d\n", i)))
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, c.Lines())
}

func TestCaptureIgnoresEmptyWrites(t *testing.T) {
	c := NewCapture(10)
	_, _ = c.Write([]byte("\n"))
	_, _ = c.Write([]byte(""))
	assert.Empty(t, c.Lines())
}

func TestCaptureAsLoggerSink(t *testing.T) {
	c := NewCapture(10)
	logger := zerolog.New(c)
	logger.Info().Str("court", "Court 2").Msg("slot matched")

	lines := c.Lines()
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "slot matched")
	assert.Contains(t, lines[0], "Court 2")
}
