package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/model"
)

const seedYAML = `products:
  - {id: p1, name: Desk Lamp, price_cents: 4500, stock: 2, category: home}
  - {id: p2, name: Wool Throw, price_cents: 3900, stock: 5, category: home}
`

func TestServeTwin_ServesSeedUntilCancelled(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o644))
	root, _ := newTestRoot(t, "")

	ready := make(chan string, 1)
	opts := &ServeTwinOptions{
		RootOptions: root,
		Addr:        "127.0.0.1:0",
		Seed:        seed,
		TokenSecret: "serve-test-secret",
		RequireAuth: true,
		ready:       ready,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- serveTwin(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("twin did not start")
	}

	resp, err := http.Get("http://" + addr + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []model.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("twin did not shut down")
	}
}

func TestServeTwin_BadSeed(t *testing.T) {
	root, _ := newTestRoot(t, "")

	cmd := NewServeTwinCommand(root)
	_, err := execute(t, cmd, "--seed", filepath.Join(t.TempDir(), "missing.yaml"), "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
