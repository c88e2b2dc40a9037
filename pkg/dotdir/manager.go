// Package dotdir manages the .parley/ and ~/.parley directories.
//
// The directory holds config.toml and the chat session state that lets
// "parley chat" resume the conversation it last used.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the parley directory.
	dirName = ".parley"

	// EnvDir names the directory when no override is given. MCP hosts start
	// "parley mcp" from arbitrary working directories and set it instead of
	// passing --config-dir.
	EnvDir = "PARLEY_DIR"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .parley/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. $PARLEY_DIR
//  3. Local ./.parley/ dir
//  4. Home ~/.parley/ dir
//  5. If none found, attempt to create ~/.parley/ dir
//
// A resolved path that exists but is not a directory is an error.
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case os.Getenv(EnvDir) != "":
		dir = os.Getenv(EnvDir)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return "", fmt.Errorf("parley directory %s is not a directory", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating parley directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Path joins name onto the resolved directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDirExists checks whether a .parley/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
