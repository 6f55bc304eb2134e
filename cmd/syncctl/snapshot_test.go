package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/reconcile"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	list := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.Handle("/api/profiles", list(`[{"id":"p1","updatedAt":"2025-03-01T08:00:00Z"}]`))
	mux.Handle("/api/submissions", list(`[]`))
	mux.Handle("/api/risks", list(`[{"id":"r1","updatedAt":"2025-03-01T08:00:00Z"},{"id":"r2","updatedAt":"2025-03-01T08:00:00Z"}]`))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSnapshotText(t *testing.T) {
	ts := fakeServer(t)
	state := filepath.Join(t.TempDir(), "session.json")

	out, err := execute(t, "snapshot", "--server", ts.URL, "--state", state)
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Regexp(t, `profile\s+1\s+0`, out)
	assert.Regexp(t, `risk\s+2\s+0`, out)

	snap, err := reconcile.NewFileSnapshotStore(state).Load(t.Context())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Kinds[reconcile.KindRisk].Records, 2)
}

func TestSnapshotJSON(t *testing.T) {
	ts := fakeServer(t)

	out, err := execute(t, "snapshot", "--server", ts.URL, "--state", "", "--format", "json")
	require.NoError(t, err)
	var snap reconcile.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Len(t, snap.Kinds[reconcile.KindProfile].Records, 1)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "snapshot", "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestSnapshotServerDown(t *testing.T) {
	ts := fakeServer(t)
	ts.Close()
	_, err := execute(t, "snapshot", "--server", ts.URL, "--state", "")
	assert.ErrorContains(t, err, "fetch")
}
