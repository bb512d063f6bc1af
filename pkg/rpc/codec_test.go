package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGobCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  *LaunchJobRequest
	}{
		{
			name: "no aux paths or dump",
			req:  &LaunchJobRequest{Cwd: "/tmp/wd", Command: "echo hi", Outdir: "/tmp/wd/out"},
		},
		{
			name: "with aux paths and dump entries",
			req: &LaunchJobRequest{
				Cwd:      "/tmp/wd",
				Command:  "echo hi",
				Outdir:   "/tmp/wd/out",
				AuxPaths: []string{"/tmp/wd/out/trace.txt"},
				Dump:     []DumpEntry{{Content: "config", Path: "/tmp/wd/out/config.json"}},
			},
		},
	}

	codec := gobCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Marshal(tt.req)
			require.NoError(t, err)

			out := new(LaunchJobRequest)
			require.NoError(t, codec.Unmarshal(data, out))
			assert.Equal(t, tt.req, out)
		})
	}
}

func TestGobCodecName(t *testing.T) {
	assert.Equal(t, "gob", gobCodec{}.Name())
}
