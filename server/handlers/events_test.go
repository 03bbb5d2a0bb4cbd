package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/cloudstats/activity"
)

func TestEvents_Lifecycle(t *testing.T) {
	env := newTestEnv(t, 10)

	w := env.do(t, http.MethodPost, "/api/events/provisioning/started",
		`{"cloud":"ec2","planned_nodes":[{"id":"p-1","display_name":"worker 1"},{"id":"p-2","display_name":"worker 2"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2, env.ledger.Len())

	w = env.do(t, http.MethodPost, "/api/events/provisioning/completed",
		`{"planned_node":{"id":"p-1"},"node":"w1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, http.MethodPost, "/api/events/launch/started", `{"node":"w1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, http.MethodPost, "/api/events/online", `{"node":"w1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	a, ok := env.ledger.FindByNode("w1")
	require.True(t, ok)
	assert.Equal(t, "worker 1", a.Name())
	assert.Equal(t, activity.PhaseOperating, a.Phase())
	assert.Equal(t, activity.StatusOK, a.Status())

	w = env.do(t, http.MethodPost, "/api/events/provisioning/failed",
		`{"planned_node":{"id":"p-2"},"error":"quota exceeded"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	failed, ok := env.ledger.FindByPlannedNode("p-2")
	require.True(t, ok)
	assert.Equal(t, activity.StatusFail, failed.Status())
	exec, ok := failed.PhaseExecution(activity.PhaseProvisioning)
	require.True(t, ok)
	require.Len(t, exec.Attachments, 1)
	assert.Equal(t, "quota exceeded", exec.Attachments[0].Cause)
}

func TestEvents_LaunchFailed(t *testing.T) {
	env := newTestEnv(t, 10)
	env.do(t, http.MethodPost, "/api/events/provisioning/started", `{"cloud":"ec2","planned_nodes":[{"id":"p-1"}]}`)
	env.do(t, http.MethodPost, "/api/events/provisioning/completed", `{"planned_node":{"id":"p-1"},"node":"w1"}`)

	w := env.do(t, http.MethodPost, "/api/events/launch/failed", `{"node":"w1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	a, ok := env.ledger.FindByNode("w1")
	require.True(t, ok)
	exec, ok := a.PhaseExecution(activity.PhaseLaunching)
	require.True(t, ok)
	require.Len(t, exec.Attachments, 1)
	assert.Equal(t, "Launch failed", exec.Attachments[0].Title)
	assert.Empty(t, exec.Attachments[0].Cause)
}

func TestEvents_UntrackedIsAccepted(t *testing.T) {
	env := newTestEnv(t, 10)

	w := env.do(t, http.MethodPost, "/api/events/online", `{"node":"static-agent"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 0, env.ledger.Len())
}

func TestEvents_BadRequests(t *testing.T) {
	env := newTestEnv(t, 10)

	tests := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"empty body", "/api/events/online", "", "request body is empty"},
		{"malformed json", "/api/events/online", `{"node":`, "invalid request body"},
		{"unknown field", "/api/events/online", `{"node":"w1","extra":1}`, "invalid request body"},
		{"trailing data", "/api/events/online", `{"node":"w1"}{}`, "single JSON object"},
		{"missing node", "/api/events/launch/started", `{}`, "node is required"},
		{"missing cloud", "/api/events/provisioning/started", `{"planned_nodes":[{"id":"p"}]}`, "cloud is required"},
		{"no planned nodes", "/api/events/provisioning/started", `{"cloud":"ec2"}`, "planned_nodes must not be empty"},
		{"planned node without id", "/api/events/provisioning/started", `{"cloud":"ec2","planned_nodes":[{"id":"p"},{}]}`, "planned_nodes[1]: id is required"},
		{"completed without node", "/api/events/provisioning/completed", `{"planned_node":{"id":"p"}}`, "node is required"},
		{"failed without id", "/api/events/provisioning/failed", `{"error":"x"}`, "planned_node: id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantErr)
		})
	}
	assert.Equal(t, 0, env.ledger.Len())
}
