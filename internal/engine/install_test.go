package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeInstall creates a minimal valid installation under a temp dir.
func makeInstall(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "languagetool", VersionDir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, LibDirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ServerJarName), []byte("jar"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LibDirName, "slf4j-api-1.7.36.jar"), []byte("jar"), 0o644))
	return dir
}

func TestInstallation_Validate(t *testing.T) {
	dir := makeInstall(t)
	inst := Installation{Dir: dir}
	require.NoError(t, inst.Validate())

	assert.Equal(t, filepath.Join(dir, ServerJarName)+string(os.PathListSeparator)+filepath.Join(dir, "libs", "*"), inst.Classpath())

	require.NoError(t, os.Remove(filepath.Join(dir, LibDirName, "slf4j-api-1.7.36.jar")))
	assert.ErrorContains(t, inst.Validate(), "slf4j")

	require.NoError(t, os.RemoveAll(filepath.Join(dir, LibDirName)))
	assert.ErrorContains(t, inst.Validate(), "library directory")

	require.NoError(t, os.Remove(filepath.Join(dir, ServerJarName)))
	assert.ErrorContains(t, inst.Validate(), "server archive")
}

func TestFindInstallation(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	first := makeInstall(t)
	second := makeInstall(t)

	inst, err := FindInstallation("", []string{missing, first, second})
	require.NoError(t, err)
	assert.Equal(t, first, inst.Dir)

	_, err = FindInstallation("", []string{missing})
	assert.ErrorIs(t, err, ErrNotInstalled)

	_, err = FindInstallation("", nil)
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestFindInstallation_RemovedMarker(t *testing.T) {
	dataDir := t.TempDir()
	inst := makeInstall(t)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, RemovedMarker), []byte("deleted"), 0o644))

	_, err := FindInstallation(dataDir, []string{inst})
	assert.ErrorIs(t, err, ErrNotInstalled)
	assert.ErrorContains(t, err, "removed")
}

func TestDefaultInstallDirs(t *testing.T) {
	dirs := DefaultInstallDirs("/data")
	require.NotEmpty(t, dirs)
	assert.Equal(t, filepath.Join("/data", "languagetool", VersionDir), dirs[0])
}

func TestFindJava_Explicit(t *testing.T) {
	_, err := FindJava(context.Background(), "/nonexistent/bin/java")
	assert.ErrorIs(t, err, ErrRuntimeNotFound)

	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	got, err := FindJava(context.Background(), truePath)
	require.NoError(t, err)
	assert.Equal(t, truePath, got)
}
