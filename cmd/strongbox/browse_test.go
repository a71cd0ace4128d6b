package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/benaskins/strongbox/internal/codec"
	"github.com/benaskins/strongbox/internal/config"
	"github.com/benaskins/strongbox/internal/keychain"
	"github.com/benaskins/strongbox/internal/logbuf"
	tea "github.com/charmbracelet/bubbletea"
)

func testApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()

	auditLog, err := audit.NewLogger(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { auditLog.Close() })

	meta, err := keychain.NewMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatal(err)
	}

	plain := keychain.NewStore(keychain.NewMemoryVault(), keychain.WithAccessGroup("test"))
	return &app{
		cfg:   &config.Config{AccessGroup: "test", Metadata: meta.Path()},
		store: keychain.NewAuditedStore(plain, auditLog, meta, "browse"),
		plain: plain,
		audit: auditLog,
	}
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *browseModel, in ...string) {
	for _, s := range in {
		m.Update(keys(s))
	}
}

func typeText(m *browseModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestBrowseListsAndMasks(t *testing.T) {
	a := testApp(t)
	keychain.Set(a.plain, "db", "hunter2", codec.String)
	keychain.Set(a.plain, "api", "token", codec.String)

	m := newBrowseModel(a)
	view := m.View()

	if !strings.Contains(view, "api") || !strings.Contains(view, "db") {
		t.Errorf("view missing keys:\n%s", view)
	}
	if strings.Contains(view, "hunter2") {
		t.Error("value shown before reveal")
	}
}

func TestBrowseRevealIsAudited(t *testing.T) {
	a := testApp(t)
	keychain.Set(a.plain, "db", "hunter2", codec.String)

	m := newBrowseModel(a)
	press(m, "enter")

	if !strings.Contains(m.View(), "hunter2") {
		t.Errorf("expected revealed value:\n%s", m.View())
	}

	entries := readAudit(t, a)
	if len(entries) != 1 || entries[0].Action != audit.ActionSecretRead || entries[0].Actor != "browse" {
		t.Errorf("audit entries = %+v", entries)
	}

	press(m, "enter")
	if strings.Contains(m.View(), "hunter2") {
		t.Error("value still shown after hiding")
	}
}

func TestBrowseRevealBinaryAsHex(t *testing.T) {
	a := testApp(t)
	a.plain.SetData("raw", []byte{0xff, 0x00})

	m := newBrowseModel(a)
	press(m, "enter")

	if got := m.revealed["raw"]; got != "0xff00" {
		t.Errorf("revealed = %q", got)
	}
}

func TestBrowseNewSecret(t *testing.T) {
	a := testApp(t)
	m := newBrowseModel(a)

	press(m, "n")
	typeText(m, "new-key")
	press(m, "enter")
	if m.mode != modeNewValue {
		t.Fatalf("mode = %v, want value entry", m.mode)
	}
	typeText(m, "s3cret")
	press(m, "enter")

	if v, ok := keychain.Get(a.plain, "new-key", codec.String); !ok || v != "s3cret" {
		t.Errorf("stored %q, %v", v, ok)
	}
	if m.mode != modeList || m.failed {
		t.Errorf("mode = %v, status = %q", m.mode, m.status)
	}
	if len(m.keys) != 1 || m.keys[0] != "new-key" {
		t.Errorf("keys = %v", m.keys)
	}
	if meta := a.store.Metadata().Get("new-key"); meta == nil {
		t.Error("expected metadata for new secret")
	}
}

func TestBrowseNewSecretCancel(t *testing.T) {
	a := testApp(t)
	m := newBrowseModel(a)

	press(m, "n")
	typeText(m, "abandoned")
	press(m, "esc")

	if m.mode != modeList {
		t.Errorf("mode = %v", m.mode)
	}
	if got := a.plain.Keys(); len(got) != 0 {
		t.Errorf("keys = %v", got)
	}
}

func TestBrowseDeleteConfirm(t *testing.T) {
	a := testApp(t)
	keychain.Set(a.plain, "a", "1", codec.String)
	keychain.Set(a.plain, "b", "2", codec.String)

	m := newBrowseModel(a)

	press(m, "d", "n")
	if got := a.plain.Keys(); len(got) != 2 {
		t.Fatalf("declined delete removed a key: %v", got)
	}

	press(m, "d", "y")
	if _, ok := a.plain.Data("a"); ok {
		t.Error("expected a to be deleted")
	}
	if len(m.keys) != 1 || m.keys[0] != "b" {
		t.Errorf("keys = %v", m.keys)
	}
}

func TestBrowseRefreshPicksUpExternalKeys(t *testing.T) {
	a := testApp(t)
	m := newBrowseModel(a)

	keychain.Set(a.plain, "external", "x", codec.String)
	m.Update(refreshMsg{})

	if len(m.keys) != 1 || m.keys[0] != "external" {
		t.Errorf("keys = %v", m.keys)
	}
	if _, ok := m.props["external"]; !ok {
		t.Error("expected a bound property for the new key")
	}
}

func TestBrowseValueMsgUpdatesRevealed(t *testing.T) {
	a := testApp(t)
	keychain.Set(a.plain, "k", "old", codec.String)

	m := newBrowseModel(a)
	press(m, "enter")

	m.Update(valueMsg{key: "k", value: "new", ok: true})
	if got := m.revealed["k"]; got != "new" {
		t.Errorf("revealed = %q", got)
	}

	m.Update(valueMsg{key: "k", ok: false})
	if _, shown := m.revealed["k"]; shown {
		t.Error("absent value still revealed")
	}
}

func TestBrowseShowsRecentWarnings(t *testing.T) {
	a := testApp(t)
	m := newBrowseModel(a)
	m.logs = logbuf.New(10, slog.LevelWarn)

	log := slog.New(m.logs)
	log.Info("not shown")
	log.Warn("vault refused write", "key", "db")

	view := m.View()
	if !strings.Contains(view, "vault refused write key=db") {
		t.Errorf("expected warning in view:\n%s", view)
	}
	if strings.Contains(view, "not shown") {
		t.Error("info record rendered")
	}
}

func readAudit(t *testing.T, a *app) []audit.Entry {
	t.Helper()
	entries, err := audit.ReadEntries(a.audit.Path())
	if err != nil {
		t.Fatal(err)
	}
	return entries
}
