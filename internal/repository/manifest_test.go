package repository

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRepository_Read(t *testing.T) {
	t.Run("Should read the manifest fields", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(`{
  "name": "@compozy/demo",
  "version": "1.2.0-beta.3",
  "private": true,
  "packageManager": "pnpm@9.1.0"
}`), 0o644))
		manifest, err := NewManifestRepository(fs).Read(context.Background(), "package.json")
		require.NoError(t, err)
		assert.Equal(t, "@compozy/demo", manifest.Name)
		assert.Equal(t, "1.2.0-beta.3", manifest.Version)
		assert.True(t, manifest.Private)
		assert.Equal(t, "pnpm@9.1.0", manifest.PackageManager)
		assert.Equal(t, "@compozy/demo@1.2.0-beta.3", manifest.Spec())
	})
	t.Run("Should fail on invalid JSON", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(`{"name":`), 0o644))
		_, err := NewManifestRepository(fs).Read(context.Background(), "package.json")
		assert.ErrorContains(t, err, "failed to parse manifest")
	})
}

func TestManifestRepository_WriteVersion(t *testing.T) {
	ctx := context.Background()
	t.Run("Should only replace the top-level version", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		original := "{\n\t\"name\": \"demo\",\n\t\"engines\": {\"version\": \"18\"},\n\t\"files\": [\"dist\", {\"a\": 1}],\n\t\"version\": \"1.0.0\",\n\t\"private\": false\n}\n"
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(original), 0o644))
		require.NoError(t, NewManifestRepository(fs).WriteVersion(ctx, "package.json", "1.0.1-edge.0"))
		data, err := afero.ReadFile(fs, "package.json")
		require.NoError(t, err)
		expected := "{\n\t\"name\": \"demo\",\n\t\"engines\": {\"version\": \"18\"},\n\t\"files\": [\"dist\", {\"a\": 1}],\n\t\"version\": \"1.0.1-edge.0\",\n\t\"private\": false\n}\n"
		assert.Equal(t, expected, string(data))
	})
	t.Run("Should handle minified manifests", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(`{"name":"demo","version":"2.0.0"}`), 0o644))
		require.NoError(t, NewManifestRepository(fs).WriteVersion(ctx, "package.json", "2.1.0"))
		data, err := afero.ReadFile(fs, "package.json")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"demo","version":"2.1.0"}`, string(data))
	})
	t.Run("Should skip a name whose value is the word version", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(`{"name":"version","version":"0.1.0"}`), 0o644))
		require.NoError(t, NewManifestRepository(fs).WriteVersion(ctx, "package.json", "0.2.0"))
		data, err := afero.ReadFile(fs, "package.json")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"version","version":"0.2.0"}`, string(data))
	})
	t.Run("Should fail when no version field exists", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(`{"name":"demo","config":{"version":"1.0.0"}}`), 0o644))
		err := NewManifestRepository(fs).WriteVersion(ctx, "package.json", "1.0.1")
		assert.ErrorIs(t, err, ErrVersionFieldNotFound)
	})
}
