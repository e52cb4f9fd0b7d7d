package app_test

import (
	"os"
	"testing"

	"bossline/internal/app"
	"bossline/internal/config"
)

func TestResolveSeedsWorkspace(t *testing.T) {
	dir := t.TempDir()
	a, err := app.Resolve(app.Options{Workspace: dir})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer a.Close()

	if a.Config.APIBase == "" {
		t.Fatalf("config not seeded: %+v", a.Config)
	}
	if _, err := os.Stat(config.Path(dir)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if a.Session == nil || a.Store == nil {
		t.Fatalf("session/store not wired")
	}
}

func TestResolveKeepsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.APIBase = "http://boss.example:9000"
	cfg.HistoryKeep = 7
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("save config: %v", err)
	}

	a, err := app.Resolve(app.Options{Workspace: dir})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer a.Close()

	if a.Config.APIBase != "http://boss.example:9000" {
		t.Fatalf("api_base %q", a.Config.APIBase)
	}
	if a.Session.Keep != 7 {
		t.Fatalf("session keep %d", a.Session.Keep)
	}
	if a.Session.Client.APIBase != "http://boss.example:9000" {
		t.Fatalf("client base %q", a.Session.Client.APIBase)
	}
}

func TestResolveAPIBaseOverride(t *testing.T) {
	dir := t.TempDir()
	a, err := app.Resolve(app.Options{Workspace: dir, APIBase: "http://127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer a.Close()

	if a.Session.Client.APIBase != "http://127.0.0.1:9999" {
		t.Fatalf("override lost: %q", a.Session.Client.APIBase)
	}
	if a.Config.APIBase == "http://127.0.0.1:9999" {
		t.Fatalf("override must not rewrite the config file value")
	}
}
