package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Installation layout.
const (
	ServerJarName = "languagetool-server.jar"
	LibDirName    = "libs"
	VersionDir    = "LanguageTool-6.0"

	// RemovedMarker in the data directory records that the user removed
	// the engine; bundled copies are then ignored too.
	RemovedMarker = ".languagetool-deleted"
)

// Installation is a LanguageTool server directory.
type Installation struct {
	Dir string
}

// ServerJar returns the path of the server archive.
func (i Installation) ServerJar() string {
	return filepath.Join(i.Dir, ServerJarName)
}

// LibDir returns the path of the library directory.
func (i Installation) LibDir() string {
	return filepath.Join(i.Dir, LibDirName)
}

// Classpath returns the java -cp argument.
func (i Installation) Classpath() string {
	return i.ServerJar() + string(os.PathListSeparator) + filepath.Join(i.LibDir(), "*")
}

// Validate checks that the server archive and library directory exist and
// that the libraries include slf4j.
func (i Installation) Validate() error {
	if _, err := os.Stat(i.ServerJar()); err != nil {
		return fmt.Errorf("server archive: %w", err)
	}

	entries, err := os.ReadDir(i.LibDir())
	if err != nil {
		return fmt.Errorf("library directory: %w", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "slf4j") {
			return nil
		}
	}
	return fmt.Errorf("library directory %s: slf4j not found", i.LibDir())
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "corrector")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "corrector")
	}
	return filepath.Join(home, ".local", "share", "corrector")
}

// DefaultInstallDirs returns the search order for installations: the data
// directory copy first, then system-wide locations.
func DefaultInstallDirs(dataDir string) []string {
	return []string{
		filepath.Join(dataDir, "languagetool", VersionDir),
		filepath.Join("/usr/share/languagetool", VersionDir),
		filepath.Join("/opt/languagetool", VersionDir),
	}
}

// FindInstallation returns the first valid installation in dirs. When
// dataDir contains RemovedMarker no installation is considered.
func FindInstallation(dataDir string, dirs []string) (Installation, error) {
	if dataDir != "" {
		if _, err := os.Stat(filepath.Join(dataDir, RemovedMarker)); err == nil {
			return Installation{}, fmt.Errorf("%w: removed by user", ErrNotInstalled)
		}
	}

	var errs []error
	for _, dir := range dirs {
		inst := Installation{Dir: dir}
		if err := inst.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		return inst, nil
	}
	if len(errs) == 0 {
		return Installation{}, fmt.Errorf("%w: no install directories configured", ErrNotInstalled)
	}
	return Installation{}, fmt.Errorf("%w: %w", ErrNotInstalled, errors.Join(errs...))
}
