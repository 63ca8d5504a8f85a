package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/owera/internal/spec"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig writes a 0600 config file enabling checkpoints under dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "checkpoint:\n  enabled: true\n  path: " + filepath.Join(dir, "checkpoints") + "\n" +
		"output:\n  dir: " + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
		assert.NotEmpty(t, c.Short, "command %s should have a short description", c.Name())
	}
	for _, want := range []string{"run", "parse", "serve", "mcp", "watch", "status", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Commit:")
}

func TestRunCmd_Offline(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "notes")

	stdout, err := execute(t, "run", "--offline",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--out", out,
		"Build an app called Notes with a home page")
	require.NoError(t, err)

	var s summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, "complete", s.Outcome)
	assert.Equal(t, 4, s.Cycles)
	assert.Equal(t, out, s.Dir)
	assert.NotEmpty(t, s.Commit)
	require.NotEmpty(t, s.Features)
	for _, f := range s.Features {
		assert.True(t, strings.HasSuffix(f, ": approved"), f)
	}

	assert.FileExists(t, filepath.Join(out, "src", "app.py"))
	assert.FileExists(t, filepath.Join(out, "README.md"))
}

func TestRunCmd_EmptyDescription(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--offline", "--config", filepath.Join(dir, "missing.yaml"), "--out", dir)
	assert.ErrorIs(t, err, spec.ErrEmptySpec)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator:\n  max_cycles: 0\n  parallelism: -1\n"), 0600))

	_, err := execute(t, "run", "--offline", "--config", path, "A todo app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallelism")
}

func TestParseCmd(t *testing.T) {
	dir := t.TempDir()
	stdout, err := execute(t, "parse", "--offline",
		"--config", filepath.Join(dir, "missing.yaml"),
		"Build an app called Notes with a home page")
	require.NoError(t, err)

	var doc spec.Document
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "Notes", doc.Name)
	assert.NotEmpty(t, doc.Features)
	assert.Equal(t, spec.DefaultTechnologies(), doc.Technologies)
}

func TestStatusCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	stdout, err := execute(t, "run", "--offline", "--config", cfg, "Build an app called Notes with a home page")
	require.NoError(t, err)
	var s summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))

	stdout, err = execute(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, s.RunID)

	stdout, err = execute(t, "status", "--config", cfg, "--run", s.RunID)
	require.NoError(t, err)
	var st checkpointStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	assert.Equal(t, s.RunID, st.RunID)
	assert.Equal(t, "Notes", st.Name)
	assert.True(t, st.Complete)
	assert.Zero(t, st.OpenIssues)

	_, err = execute(t, "status", "--config", cfg, "--run", "nope")
	assert.ErrorContains(t, err, "no checkpoint")
}

func TestStatusCmd_CheckpointsDisabled(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "status", "--config", filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "checkpoints are disabled")
}

func TestWatchCmd_RequiresFile(t *testing.T) {
	_, err := execute(t, "watch")
	assert.ErrorContains(t, err, "--file is required")
}

func TestLoadProject(t *testing.T) {
	ctx := context.Background()
	parser := spec.NewParser(nil, nil)

	_, err := loadProject(ctx, parser, "", []string{"  "})
	assert.ErrorIs(t, err, spec.ErrEmptySpec)

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Shop\nfeatures:\n  - name: cart\n    description: hold items\n"), 0600))

	p, err := loadProject(ctx, parser, path, nil)
	require.NoError(t, err)
	assert.Len(t, p.Features(), 1)

	p, err = loadProject(ctx, parser, path, []string{"with a wishlist to save items"})
	require.NoError(t, err)
	assert.Equal(t, "Shop", p.Name())
	assert.Len(t, p.Features(), 2)
	_, ok := p.Feature("wishlist")
	assert.True(t, ok)
}

func TestNatsHostPort(t *testing.T) {
	tests := []struct {
		url  string
		host string
		port int
	}{
		{"nats://localhost:4222", "127.0.0.1", 4222},
		{"nats://0.0.0.0:5222", "0.0.0.0", 5222},
		{"nats://127.0.0.1", "127.0.0.1", 4222},
	}
	for _, tt := range tests {
		host, port, err := natsHostPort(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.host, host, tt.url)
		assert.Equal(t, tt.port, port, tt.url)
	}

	_, _, err := natsHostPort("nats://localhost:abc")
	assert.Error(t, err)
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.txt")
	require.NoError(t, os.WriteFile(path, []byte("A todo app"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	started := make(chan context.Context, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchFile(ctx, path, 50*time.Millisecond, func(runCtx context.Context) {
			calls.Add(1)
			started <- runCtx
			<-runCtx.Done()
		})
	}()

	var first context.Context
	select {
	case first = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not start")
	}

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	require.NoError(t, os.WriteFile(path, []byte("A todo app with tags"), 0600))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a rerun")
	}
	assert.Error(t, first.Err(), "previous run is cancelled")
	assert.Equal(t, int32(2), calls.Load())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not return")
	}
}
