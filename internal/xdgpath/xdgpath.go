package xdgpath

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDir = "clin"

func getStateHome() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return stateHome, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

func getConfigHome() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// StatePath returns the path for a state file, creating the directory if needed.
func StatePath(elem ...string) (string, error) {
	base, err := getStateHome()
	if err != nil {
		return "", err
	}
	return join(base, elem)
}

// ConfigPath returns the path for a config file, creating the directory if needed.
func ConfigPath(elem ...string) (string, error) {
	base, err := getConfigHome()
	if err != nil {
		return "", err
	}
	return join(base, elem)
}

func join(base string, elem []string) (string, error) {
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}
