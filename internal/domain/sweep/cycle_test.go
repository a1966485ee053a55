package sweep

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCycleStampsLoggerWithRunID(t *testing.T) {
	var buf bytes.Buffer
	c := &Coordinator{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	cy := c.newCycle("trigger", "record")
	require.NotEmpty(t, cy.runID)
	cy.logger.Info("checking")

	line := buf.String()
	assert.Contains(t, line, "run_id="+cy.runID)
	assert.Contains(t, line, "trigger=record")
	assert.Equal(t, 1, strings.Count(line, "run_id="), "one run id per cycle")
}
