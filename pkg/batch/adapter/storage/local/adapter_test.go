package local_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
)

func newConn(t *testing.T) (storageAdapter.StorageConnection, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "data")
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: base, BucketName: "out"}, "output")
	require.NoError(t, err)
	return conn, base
}

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, base := newConn(t)
	assert.Equal(t, "local", conn.Type())
	assert.Equal(t, "output", conn.Name())

	require.NoError(t, conn.Upload(ctx, "", "reports/players.txt", strings.NewReader("a,b\n"), "text/plain"))
	require.NoError(t, conn.Upload(ctx, "", "reports/players.txt", strings.NewReader("c,d\n"), "text/plain"))
	require.NoError(t, conn.Upload(ctx, "", "summary.txt", strings.NewReader("ok"), "text/plain"))

	data, err := os.ReadFile(filepath.Join(base, "out", "reports", "players.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c,d\n", string(data))

	r, err := conn.Download(ctx, "", "reports/players.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "c,d\n", string(got))

	var all []string
	require.NoError(t, conn.ListObjects(ctx, "", "", func(name string) error {
		all = append(all, name)
		return nil
	}))
	assert.ElementsMatch(t, []string{"reports/players.txt", "summary.txt"}, all, "temporary files must not remain")

	var reports []string
	require.NoError(t, conn.ListObjects(ctx, "", "reports/", func(name string) error {
		reports = append(reports, name)
		return nil
	}))
	assert.Equal(t, []string{"reports/players.txt"}, reports)

	require.NoError(t, conn.DeleteObject(ctx, "", "summary.txt"))
	require.NoError(t, conn.DeleteObject(ctx, "", "summary.txt"), "deleting a missing object is not an error")
	_, err = conn.Download(ctx, "", "summary.txt")
	assert.Error(t, err)
	require.NoError(t, conn.Close())
}

func TestLocalAdapter_RejectsPathsOutsideBaseDir(t *testing.T) {
	ctx := context.Background()
	conn, base := newConn(t)

	err := conn.Upload(ctx, "", "../../escape.txt", strings.NewReader("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of base_dir")
	_, statErr := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = conn.Download(ctx, "..", "secret")
	assert.Error(t, err)
}

func TestLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType}, "output")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: file}, "output")
	assert.Error(t, err)
}

func TestResolver_DispatchesByConfiguredType(t *testing.T) {
	ctx := context.Background()
	cfg := coreConfig.NewConfig()
	cfg.Surfin.StorageConfigs = map[string]interface{}{
		"output": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"remote": map[string]interface{}{"type": "s3", "bucket_name": "b"},
	}
	provider := local.NewLocalProvider(cfg)
	resolver := storageAdapter.NewResolver(cfg, provider)

	conn, err := resolver.ResolveStorageConnection(ctx, "output")
	require.NoError(t, err)
	again, err := resolver.ResolveConnection(ctx, "output")
	require.NoError(t, err)
	assert.Same(t, conn, again, "connections are cached per name")

	_, err = resolver.ResolveStorageConnection(ctx, "remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage provider found for type 's3'")

	_, err = resolver.ResolveStorageConnection(ctx, "unknown")
	assert.Error(t, err)

	_, err = provider.GetConnection("remote")
	assert.Error(t, err, "the local provider refuses a non-local config")

	assert.NoError(t, resolver.CloseAll())
}
