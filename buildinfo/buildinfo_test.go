package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	p := Get()
	assert.Equal(t, "dev", p.Version)
	assert.Equal(t, "unknown", p.GitCommit)
	assert.Equal(t, runtime.Version(), p.GoVersion)
}

func TestProperties_String(t *testing.T) {
	p := Properties{Version: "v1.0.0", BuildTime: "2024-03-01", GitCommit: "abc123", GoVersion: "go1.23.2"}
	assert.Equal(t, "v1.0.0 (commit abc123, built 2024-03-01, go1.23.2)", p.String())
}
