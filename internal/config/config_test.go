package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	// Point HOME at an empty dir so no user config file interferes.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectsDir == "" {
		t.Error("projects dir default is empty")
	}
	if cfg.ListenAddr != "localhost:8422" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.MCPPort != 8423 {
		t.Errorf("mcp port = %d", cfg.MCPPort)
	}
	if cfg.PermissionTimeoutSecs != 300 {
		t.Errorf("permission timeout = %d", cfg.PermissionTimeoutSecs)
	}
	if cfg.DBPath == "" {
		t.Error("db path default is empty")
	}
}

func TestExpandHome(t *testing.T) {
	if got := expandHome("~/x/y", "/home/u"); got != "/home/u/x/y" {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path", "/home/u"); got != "/abs/path" {
		t.Errorf("absolute path changed to %q", got)
	}
}
