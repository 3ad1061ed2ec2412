package cli

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/twin"
)

// env returns a getenv backed by vars.
func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// startTwin serves a seeded twin for the duration of the test.
func startTwin(t *testing.T, seed *twin.Seed) (*twin.Server, string) {
	t.Helper()
	srv := twin.New(twin.Options{TokenSecret: "cli-test-secret", RequireAuth: true, Seed: seed})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// newTestRoot returns root options pointed at a temp database and the
// given remote, plus a function that executes a subcommand.
func newTestRoot(t *testing.T, remoteURL string) (*RootOptions, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "storesync.db")
	vars := map[string]string{"STORESYNC_DATABASE": db, "STORESYNC_LOG_LEVEL": "error"}
	if remoteURL != "" {
		vars["STORESYNC_REMOTE_URL"] = remoteURL
	}
	return &RootOptions{Format: "text", Getenv: env(vars)}, db
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
