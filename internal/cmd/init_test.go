package cmd

import (
	"testing"

	"ghmirror/pkg/config"
)

func TestRunInitCreatesDefaultConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit() returned error: %v", err)
	}

	path, err := config.DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() returned error: %v", err)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("created config does not load: %v", err)
	}
	if cfg.Directory == "" {
		t.Error("default config must set a backup directory")
	}
	if cfg.Token != "" {
		t.Errorf("default config token = %q, want empty", cfg.Token)
	}
}
