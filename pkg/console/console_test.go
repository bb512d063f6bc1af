package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benchlab/fleetsched/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConsole builds a Console over a fresh scheduler; tests call
// dispatch directly instead of Run, so they never pay startDelay.
func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	sched := scheduler.NewScheduler("test", time.Hour)
	var out bytes.Buffer
	return New(sched, strings.NewReader(""), &out), &out
}

func TestDispatchUnrecognizedCommand(t *testing.T) {
	c, _ := newTestConsole(t)
	_, err := c.dispatch("bogus")
	assert.Error(t, err)
}

func TestDispatchEmptyListUsage(t *testing.T) {
	c, _ := newTestConsole(t)
	_, err := c.dispatch("list")
	assert.Error(t, err)
}

func TestDispatchListHostAndExperiment(t *testing.T) {
	c, out := newTestConsole(t)

	stop, err := c.dispatch("list host")
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Contains(t, out.String(), "hosts:")

	out.Reset()
	stop, err = c.dispatch("list experiment")
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Contains(t, out.String(), "experiments:")
}

func TestDispatchKillUnknownIsNotAnError(t *testing.T) {
	c, _ := newTestConsole(t)
	_, err := c.dispatch("kill experiment nonexistent")
	assert.NoError(t, err)
}

func TestDispatchKillBadKind(t *testing.T) {
	c, _ := newTestConsole(t)
	_, err := c.dispatch("kill widget nonexistent")
	assert.Error(t, err)
}

func TestDispatchStop(t *testing.T) {
	c, _ := newTestConsole(t)
	stop, err := c.dispatch("stop")
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestDispatchProcessLoadsScript(t *testing.T) {
	c, out := newTestConsole(t)

	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hosts: []
experiments:
  - name: sweep-a
    outdir: /tmp
    jobs:
      - id: run-0
        command: true
        demand: 1
`), 0o644))

	stop, err := c.dispatch("process " + path)
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Contains(t, out.String(), "sweep-a")

	active, _, _ := c.sched.ExperimentNames()
	assert.Equal(t, []string{"sweep-a"}, active)
}

func TestDispatchProcessMissingScript(t *testing.T) {
	c, _ := newTestConsole(t)
	_, err := c.dispatch("process /nonexistent/script.yaml")
	assert.Error(t, err)
}
