package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `backend: openbao
service: com.example.app
access_group: team.chat
audit_log: /tmp/strongbox/audit.log
openbao:
  address: http://127.0.0.1:8200
  mount: kv
  prefix: apps/chat
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BAO_ADDR", "")
	t.Setenv("BAO_TOKEN", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendOpenBao {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendOpenBao)
	}
	if cfg.Service != "com.example.app" {
		t.Errorf("Service = %q, want %q", cfg.Service, "com.example.app")
	}
	if cfg.AccessGroup != "team.chat" {
		t.Errorf("AccessGroup = %q, want %q", cfg.AccessGroup, "team.chat")
	}
	if cfg.AuditLog != "/tmp/strongbox/audit.log" {
		t.Errorf("AuditLog = %q", cfg.AuditLog)
	}
	if cfg.OpenBao.Address != "http://127.0.0.1:8200" {
		t.Errorf("OpenBao.Address = %q", cfg.OpenBao.Address)
	}
	if cfg.OpenBao.Mount != "kv" || cfg.OpenBao.Prefix != "apps/chat" {
		t.Errorf("OpenBao = %+v", cfg.OpenBao)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Backend != BackendKeychain {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendKeychain)
	}
	if cfg.Service != "com.strongbox" {
		t.Errorf("Service = %q, want com.strongbox", cfg.Service)
	}
	if cfg.AccessGroup != "" {
		t.Errorf("AccessGroup = %q, want empty", cfg.AccessGroup)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendKeychain {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendKeychain)
	}
}

func TestLoadCommentsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `# backend: openbao
# access_group: team.chat
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendKeychain {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendKeychain)
	}
	if cfg.AccessGroup != "" {
		t.Errorf("AccessGroup = %q, want empty", cfg.AccessGroup)
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("backend: s3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BAO_ADDR", "https://bao.internal:8200")
	t.Setenv("BAO_TOKEN", "s.token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenBao.Address != "https://bao.internal:8200" {
		t.Errorf("OpenBao.Address = %q", cfg.OpenBao.Address)
	}
	if cfg.OpenBao.Token != "s.token" {
		t.Errorf("OpenBao.Token = %q", cfg.OpenBao.Token)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STRONGBOX_TEST_VAR=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("STRONGBOX_TEST_VAR", "")
	os.Unsetenv("STRONGBOX_TEST_VAR")

	LoadDotenv()

	if got := os.Getenv("STRONGBOX_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("STRONGBOX_TEST_VAR = %q", got)
	}
}
