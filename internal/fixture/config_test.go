package fixture

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadInvalidYAMLUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "routes: [this is: not: valid")
	cfg := Load(path)
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRepairsValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
software: nginx/1.25
static:
  - prefix: assets/
    dir: public
routes:
  - path: hello
    methods: [get, post]
    status: 42
    interval_ms: -5
    body: hi
  - path: /created
    status: 201
`)

	cfg := Load(path)

	if cfg.Software != "nginx/1.25" {
		t.Fatalf("unexpected software %q", cfg.Software)
	}
	if cfg.DefaultCharset != "UTF-8" {
		t.Fatalf("expected default charset, got %q", cfg.DefaultCharset)
	}
	if cfg.Static[0].Prefix != "/assets/" {
		t.Fatalf("expected prefix fixed, got %q", cfg.Static[0].Prefix)
	}

	hello := cfg.Routes[0]
	if hello.Path != "/hello" {
		t.Fatalf("expected path fixed, got %q", hello.Path)
	}
	if !reflect.DeepEqual(hello.Methods, []string{"GET", "POST"}) {
		t.Fatalf("expected upper-cased methods, got %v", hello.Methods)
	}
	if hello.Status != 200 || hello.IntervalMs != 0 {
		t.Fatalf("expected status/interval repaired, got %d/%d", hello.Status, hello.IntervalMs)
	}
	if cfg.Routes[1].Status != 201 {
		t.Fatalf("valid status must be kept, got %d", cfg.Routes[1].Status)
	}
}

func TestLoadNoRoutesUsesDefaultRoutes(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "software: test\n")
	cfg := Load(path)
	if !reflect.DeepEqual(cfg.Routes, DefaultConfig().Routes) {
		t.Fatalf("expected default routes, got %+v", cfg.Routes)
	}
}

func TestProjectRootFindsGoMod(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })

	got, _ := filepath.EvalSymlinks(ProjectRoot())
	want, _ := filepath.EvalSymlinks(root)
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
