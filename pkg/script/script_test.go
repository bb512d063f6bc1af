package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHostsAndExperiments(t *testing.T) {
	path := writeScript(t, `
hosts:
  - name: worker-1
    domain: 10.0.0.5
    port: 7000
    file_server_port: 7001
    max_capacity: 16
experiments:
  - name: sweep-a
    outdir: /data/sweep-a
    jobs:
      - id: run-0
        command: ./run.sh --seed 0
        demand: 4
      - id: run-1
        command: ./run.sh --seed 1
        demand: 4
`)

	doc, err := Load(path)
	require.NoError(t, err)

	require.Len(t, doc.Hosts, 1)
	assert.Equal(t, "worker-1", doc.Hosts[0].HostName())
	assert.Equal(t, 16, doc.Hosts[0].MaxCapacity())

	require.Len(t, doc.Experiments, 1)
	assert.Equal(t, "sweep-a", doc.Experiments[0].Name)
	assert.Len(t, doc.Experiments[0].Jobs(), 2)
}

func TestLoadDeduplicatesByName(t *testing.T) {
	path := writeScript(t, `
hosts:
  - name: worker-1
    domain: 10.0.0.5
    port: 7000
    file_server_port: 7001
    max_capacity: 16
  - name: worker-1
    domain: 10.0.0.6
    port: 7000
    file_server_port: 7001
    max_capacity: 32
experiments: []
`)

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Hosts, 1)
	assert.Equal(t, 16, doc.Hosts[0].MaxCapacity())
}

func TestLoadRejectsJobMissingCommand(t *testing.T) {
	path := writeScript(t, `
hosts: []
experiments:
  - name: sweep-a
    outdir: /data
    jobs:
      - id: run-0
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/script.yaml")
	assert.Error(t, err)
}

func TestLoadAssignsIDWhenOmitted(t *testing.T) {
	path := writeScript(t, `
hosts: []
experiments:
  - name: sweep-a
    outdir: /data
    jobs:
      - command: ./run.sh
`)

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Experiments[0].Jobs(), 1)
	assert.NotEmpty(t, doc.Experiments[0].Jobs()[0].ID)
}
