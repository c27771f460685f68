package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_ExampleScenarioPasses runs the default scenario end-to-end: two
// real "sh -c echo ready" children, spawned and matched through the full
// Scheduler/Supervisor/expect stack, with no errors reported.
func TestRun_ExampleScenarioPasses(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}

	dir := t.TempDir()
	logFile := filepath.Join(dir, "run.log")
	summaryFile := filepath.Join(dir, "summary.log")

	code := run([]string{"--logfile", logFile, "--summaryfile", summaryFile, "--seed", "7"})
	assert.Equal(t, 0, code)

	logBytes, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotEmpty(t, logBytes)

	summaryBytes, err := os.ReadFile(summaryFile)
	require.NoError(t, err)
	assert.Contains(t, string(summaryBytes), "Test passed")
}
