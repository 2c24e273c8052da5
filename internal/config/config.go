// Package config loads runtime configuration from
// ~/.config/claude-island/config.toml, with working defaults when the file is
// absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ProjectsDir           string `toml:"projects_dir"`
	AppSupportDir         string `toml:"app_support_dir"`
	ListenAddr            string `toml:"listen_addr"`
	MCPPort               int    `toml:"mcp_port"`
	DBPath                string `toml:"db_path"`
	PermissionTimeoutSecs int    `toml:"permission_timeout_secs"`
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	appSupport := defaultAppSupportDir(home)
	cfg := &Config{
		ProjectsDir:           filepath.Join(home, ".claude", "projects"),
		AppSupportDir:         appSupport,
		ListenAddr:            "localhost:8422",
		MCPPort:               8423,
		DBPath:                filepath.Join(appSupport, "sessions.db"),
		PermissionTimeoutSecs: 300,
	}

	cfgPath := filepath.Join(home, ".config", "claude-island", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.ProjectsDir = expandHome(cfg.ProjectsDir, home)
	cfg.AppSupportDir = expandHome(cfg.AppSupportDir, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

// defaultAppSupportDir places state where the host platform expects it.
func defaultAppSupportDir(home string) string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "ClaudeIsland")
	}
	return filepath.Join(home, ".local", "share", "claude-island")
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
