package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides the home directory.
const HomeEnv = "LIME_E2E_HOME"

var home = sync.OnceValue(resolveHome)

// GetHome returns the lime-e2e home directory. Relative artifact and log
// paths resolve against it. The first of these wins and is cached:
// $LIME_E2E_HOME, the parent of bin/ when installed as <home>/bin/lime-e2e,
// the working directory.
func GetHome() string {
	return home()
}

// ResetHome drops the cached home directory.
func ResetHome() {
	home = sync.OnceValue(resolveHome)
}

func resolveHome() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func underHome(path, sub string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetHome(), sub, path)
}

// ArtifactDir returns the absolute diagnostics directory.
func (c *Config) ArtifactDir() string {
	dir := c.Artifacts.Dir
	if dir == "" {
		dir = "screenshots"
	}
	return underHome(dir, "")
}

// LogFile returns the absolute log file path, or "" when file logging is off.
// Relative names live in <home>/logs.
func (c *Config) LogFile() string {
	if c.Log.File == "" {
		return ""
	}
	return underHome(c.Log.File, "logs")
}
