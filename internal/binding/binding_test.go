package binding

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benaskins/strongbox/internal/codec"
	"github.com/benaskins/strongbox/internal/keychain"
)

type notification[T any] struct {
	value T
	ok    bool
}

type recorder[T any] struct {
	mu  sync.Mutex
	got []notification[T]
}

func (r *recorder[T]) observe(v T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notification[T]{v, ok})
}

func (r *recorder[T]) all() []notification[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification[T](nil), r.got...)
}

func TestPropertyGetSet(t *testing.T) {
	store := keychain.NewMemoryStore()
	p := New(store, "ui/token", codec.String)

	if _, ok := p.Get(); ok {
		t.Error("expected no value before set")
	}

	p.Set("abc")

	if v, ok := p.Get(); !ok || v != "abc" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	if v, ok := keychain.Get(store, "ui/token", codec.String); !ok || v != "abc" {
		t.Errorf("store not written through: %q, %v", v, ok)
	}
	if p.Key() != "ui/token" {
		t.Errorf("Key = %q", p.Key())
	}
}

func TestPropertyDefault(t *testing.T) {
	store := keychain.NewMemoryStore()
	p := New(store, "ui/remember", codec.Bool).WithDefault(true)

	if v, ok := p.Get(); !ok || !v {
		t.Errorf("expected default true, got %v, %v", v, ok)
	}

	p.Set(false)
	if v, _ := p.Get(); v {
		t.Error("expected stored false to win over default")
	}
}

func TestPropertyNotifiesOnChange(t *testing.T) {
	store := keychain.NewMemoryStore()
	p := New(store, "ui/count", codec.Int)
	rec := &recorder[int]{}
	cancel := p.Subscribe(rec.observe)

	p.Set(1)
	p.Set(1) // unchanged, no notification
	p.Set(2)
	p.Delete()
	p.Delete() // already absent

	got := rec.all()
	want := []notification[int]{{1, true}, {2, true}, {0, false}}
	if len(got) != len(want) {
		t.Fatalf("got %d notifications %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}

	cancel()
	p.Set(3)
	if n := len(rec.all()); n != 3 {
		t.Errorf("observer called after cancel: %d notifications", n)
	}
}

func TestPropertyRefreshSeesExternalWrites(t *testing.T) {
	store := keychain.NewMemoryStore()
	keychain.Set(store, "ui/name", "before", codec.String)

	p := New(store, "ui/name", codec.String)
	rec := &recorder[string]{}
	p.Subscribe(rec.observe)

	p.Refresh()
	if n := len(rec.all()); n != 0 {
		t.Fatalf("refresh without change notified %d times", n)
	}

	keychain.Set(store, "ui/name", "after", codec.String)
	p.Refresh()

	got := rec.all()
	if len(got) != 1 || got[0].value != "after" || !got[0].ok {
		t.Errorf("got %v", got)
	}
}

func TestGroupRefresh(t *testing.T) {
	store := keychain.NewMemoryStore()
	a := New(store, "a", codec.String)
	b := New(store, "b", codec.Int)
	recA, recB := &recorder[string]{}, &recorder[int]{}
	a.Subscribe(recA.observe)
	b.Subscribe(recB.observe)

	var g Group
	g.Add(a)
	g.Add(b)

	keychain.Set(store, "a", "x", codec.String)
	keychain.Set(store, "b", 7, codec.Int)
	g.Refresh()

	if got := recA.all(); len(got) != 1 || got[0].value != "x" {
		t.Errorf("a notifications = %v", got)
	}
	if got := recB.all(); len(got) != 1 || got[0].value != 7 {
		t.Errorf("b notifications = %v", got)
	}
}

func TestWatchRefreshesOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret-metadata.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	store := keychain.NewMemoryStore()
	p := New(store, "watched", codec.String)
	changes := make(chan string, 4)
	p.Subscribe(func(v string, ok bool) { changes <- v })

	var g Group
	g.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, &g) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	keychain.Set(store, "watched", "from-another-process", codec.String)
	tmp := path + ".tmp"
	os.WriteFile(tmp, []byte(`{"watched":{}}`), 0600)
	os.Rename(tmp, path)

	select {
	case v := <-changes:
		if v != "from-another-process" {
			t.Errorf("got %q", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Watch(ctx, path, &Group{}); err != nil {
		t.Errorf("Watch: %v", err)
	}
}
