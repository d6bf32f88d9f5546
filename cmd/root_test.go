package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/config"
)

// execute runs the root command with args and returns its stdout.
func execute(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"start", "search", "serve"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("store"))
	assert.NotNil(t, root.PersistentFlags().ShorthandLookup("v"))
}

func TestRootCmd_AppInitFailure(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		return nil, errors.New("boom")
	}

	_, err := execute(context.Background(), t, "search", "team", "--store", filepath.Join(t.TempDir(), "x.db3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services")
	assert.Contains(t, err.Error(), "boom")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	t.Parallel()
	_, err := execute(context.Background(), t, "search", "team", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "load config"), "got %v", err)
}

func TestResolveApp_NotInitialized(t *testing.T) {
	t.Parallel()
	_, err := resolveApp(context.Background())
	require.EqualError(t, err, "application services not initialized")
}
