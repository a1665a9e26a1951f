package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadcart/threadcart/internal/config"
	"github.com/threadcart/threadcart/internal/log"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "threadcart")
	assert.Contains(t, out.String(), "Build Time:")
}

func TestLoadCatalogDefault(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}

	catalog, err := loadCatalog(cfg, log.NewNop())
	require.NoError(t, err)

	assert.Len(t, catalog.Products, 3)
	assert.Len(t, catalog.FAQ, 5)
	assert.Len(t, catalog.Policies, 3)
}

func TestLoadCatalogOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{DataDir: dir}

	override := `{
		"products": [{"id": "p1", "type": "product", "name": "Test Shirt", "content": "A test shirt."}],
		"faq": [],
		"policies": []
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, documentsFile), []byte(override), 0o600))

	catalog, err := loadCatalog(cfg, log.NewNop())
	require.NoError(t, err)

	require.Len(t, catalog.Products, 1)
	assert.Equal(t, "Test Shirt", catalog.Products[0].Name)
	assert.Empty(t, catalog.FAQ)
}

func TestLoadCatalogRejectsInvalidOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{DataDir: dir}

	require.NoError(t, os.WriteFile(filepath.Join(dir, documentsFile), []byte("{not json"), 0o600))

	_, err := loadCatalog(cfg, log.NewNop())
	assert.Error(t, err)
}
