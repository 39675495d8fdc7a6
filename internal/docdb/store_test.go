package docdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupStore opens a store in the test's temp directory.
func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := Open(Options{Path: path, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, path
}

// reopen simulates a process restart.
func reopen(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(Options{Path: path, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

// breakPrimary replaces the primary file with a directory so the next write
// fails.
func breakPrimary(t *testing.T, s *Store) {
	t.Helper()
	if err := os.Remove(s.Path()); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.Path(), "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	t.Run("invalid path", func(t *testing.T) {
		for _, p := range []string{"", "db.txt", "db", filepath.Join(t.TempDir(), ".json")} {
			if _, err := Open(Options{Path: p}); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Open(%q) error = %v, want ErrInvalidPath", p, err)
			}
		}
	})

	t.Run("creates files", func(t *testing.T) {
		s, path := setupStore(t)
		if s.Size() != 0 {
			t.Errorf("Size() = %d, want 0", s.Size())
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("primary not created: %v", err)
		}
		if _, err := os.Stat(s.BackupPath()); err != nil {
			t.Errorf("backup not created: %v", err)
		}
	})

	t.Run("disable backup", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db.json")
		s, err := Open(Options{Path: path, DisableBackup: true, Logger: discardLogger()})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(s.BackupPath()); !os.IsNotExist(err) {
			t.Errorf("backup should not exist, Stat() = %v", err)
		}
	})

	t.Run("recovers from backup", func(t *testing.T) {
		s, path := setupStore(t)
		if err := s.Set("user1", map[string]any{"name": "Furki"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Set("user2", map[string]any{"name": "Ufuk"}); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{\"user1\": "), 0o644); err != nil {
			t.Fatal(err)
		}
		s2 := reopen(t, path)
		// The backup lags by one generation.
		if got := s2.Keys(); !slices.Equal(got, []string{"user1"}) {
			t.Errorf("Keys() = %v, want [user1]", got)
		}
		s3 := reopen(t, path)
		if !s3.Has("user1") || s3.Has("user2") {
			t.Error("primary was not healed from the backup")
		}
	})
}

func TestReadiness(t *testing.T) {
	t.Run("operations block until loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db.json")
		if err := os.WriteFile(path, []byte(`{"a": 1}`), 0o644); err != nil {
			t.Fatal(err)
		}
		s, err := New(Options{Path: path, Logger: discardLogger()})
		if err != nil {
			t.Fatal(err)
		}
		if s.Ready() {
			t.Fatal("Ready() = true before Load")
		}
		got := make(chan any, 1)
		go func() {
			v, _ := s.Get("a")
			got <- v
		}()
		select {
		case v := <-got:
			t.Fatalf("Get returned %v before Load", v)
		case <-time.After(50 * time.Millisecond):
		}
		s.Load()
		select {
		case v := <-got:
			if v != 1.0 {
				t.Errorf("Get(a) = %v, want 1", v)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Get still blocked after Load")
		}
		if !s.Ready() {
			t.Error("Ready() = false after Load")
		}
	})

	t.Run("WaitReady", func(t *testing.T) {
		s, err := New(Options{Path: filepath.Join(t.TempDir(), "db.json"), Logger: discardLogger()})
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if err := s.WaitReady(ctx); !errors.Is(err, ErrNotReady) || !errors.Is(err, context.Canceled) {
			t.Errorf("WaitReady() = %v, want ErrNotReady wrapping context.Canceled", err)
		}
		s.Load()
		s.Load()
		if err := s.WaitReady(t.Context()); err != nil {
			t.Errorf("WaitReady() = %v after Load", err)
		}
	})
}

func TestCRUD(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		s, _ := setupStore(t)
		tests := []struct {
			name  string
			value any
			want  any
		}{
			{"string", "Furki", "Furki"},
			{"number", 18, 18.0},
			{"float", 1.5, 1.5},
			{"bool", true, true},
			{"null", nil, nil},
			{"array", []any{"a", 1}, []any{"a", 1.0}},
			{"object", map[string]any{"name": "Ufuk", "age": 20}, map[string]any{"name": "Ufuk", "age": 20.0}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := s.Set(tt.name, tt.value); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
				got, ok := s.Get(tt.name)
				if !ok || !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Get(%q) = %#v, %t, want %#v", tt.name, got, ok, tt.want)
				}
			})
		}
	})

	t.Run("add is set", func(t *testing.T) {
		s, _ := setupStore(t)
		if err := s.Add("name", "Furki"); err != nil {
			t.Fatal(err)
		}
		if v, _ := s.Get("name"); v != "Furki" {
			t.Errorf("Get(name) = %v", v)
		}
	})

	t.Run("insert", func(t *testing.T) {
		s, path := setupStore(t)
		var keys []string
		for i := range 5 {
			k, err := s.Insert(map[string]any{"n": i})
			if err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
			keys = append(keys, k)
		}
		if !slices.IsSorted(keys) {
			t.Errorf("Insert keys %v are not in creation order", keys)
		}
		if got := reopen(t, path).Keys(); !slices.Equal(got, keys) {
			t.Errorf("persisted keys = %v, want %v", got, keys)
		}
		if _, err := s.Insert(func() {}); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Insert(func) error = %v, want ErrInvalidValue", err)
		}
		if s.Size() != 5 {
			t.Errorf("Size() = %d after rejected Insert, want 5", s.Size())
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		s, _ := setupStore(t)
		for name, err := range map[string]error{
			"Set":             s.Set("", 1),
			"Delete":          s.Delete(""),
			"Push":            s.Push("", 1),
			"RemoveFromArray": s.RemoveFromArray("", 1),
		} {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("%s(\"\") error = %v, want ErrInvalidKey", name, err)
			}
		}
	})

	t.Run("invalid value leaves state untouched", func(t *testing.T) {
		s, path := setupStore(t)
		if err := s.Set("k", "before"); err != nil {
			t.Fatal(err)
		}
		for _, v := range []any{func() {}, make(chan int), map[string]any{"f": func() {}}} {
			if err := s.Set("k", v); !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Set(%T) error = %v, want ErrInvalidValue", v, err)
			}
		}
		if v, _ := s.Get("k"); v != "before" {
			t.Errorf("Get(k) = %v, want before", v)
		}
		if v, _ := reopen(t, path).Get("k"); v != "before" {
			t.Errorf("persisted k = %v, want before", v)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		s, _ := setupStore(t)
		if err := s.Set("k", map[string]any{"list": []any{1}}); err != nil {
			t.Fatal(err)
		}
		v, _ := s.Get("k")
		v.(map[string]any)["list"] = "changed"
		again, _ := s.Get("k")
		if _, ok := again.(map[string]any)["list"].([]any); !ok {
			t.Error("Get() returned a reference instead of a copy")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s, path := setupStore(t)
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete("a"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if s.Has("a") {
			t.Error("Has(a) = true after Delete")
		}
		if err := s.Delete("a"); err != nil {
			t.Errorf("Delete of absent key = %v, want nil", err)
		}
		if reopen(t, path).Has("a") {
			t.Error("delete was not persisted")
		}
	})

	t.Run("delete absent key still advances backup", func(t *testing.T) {
		s, _ := setupStore(t)
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete("missing"); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(s.BackupPath())
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "{\n  \"a\": 1\n}\n" {
			t.Errorf("backup = %q, want the generation holding a", data)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s, path := setupStore(t)
		for _, k := range []string{"a", "b"} {
			if err := s.Set(k, k); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.Clear(); err != nil {
			t.Fatal(err)
		}
		if s.Size() != 0 {
			t.Errorf("Size() = %d, want 0", s.Size())
		}
		if reopen(t, path).Size() != 0 {
			t.Error("clear was not persisted")
		}
	})

	t.Run("keys values size all", func(t *testing.T) {
		s, _ := setupStore(t)
		for i, k := range []string{"c", "a", "b"} {
			if err := s.Set(k, i); err != nil {
				t.Fatal(err)
			}
		}
		if got := s.Keys(); !slices.Equal(got, []string{"c", "a", "b"}) {
			t.Errorf("Keys() = %v", got)
		}
		if got := s.Values(); !reflect.DeepEqual(got, []any{0.0, 1.0, 2.0}) {
			t.Errorf("Values() = %v", got)
		}
		if s.Size() != 3 {
			t.Errorf("Size() = %d, want 3", s.Size())
		}
		all := s.All()
		all.Set("d", 3.0)
		if s.Has("d") {
			t.Error("All() returned the live collection")
		}
	})
}

func TestPersistence(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s, path := setupStore(t)
		data := map[string]any{
			"user1":   map[string]any{"name": "Furki", "age": 19.0, "tags": []any{"a", "b"}},
			"hobbies": []any{"Reading", "Writing"},
			"age":     18.0,
			"active":  true,
			"none":    nil,
		}
		for k, v := range data {
			if err := s.Set(k, v); err != nil {
				t.Fatal(err)
			}
		}
		s2 := reopen(t, path)
		if !slices.Equal(s2.Keys(), s.Keys()) {
			t.Errorf("Keys() = %v, want %v", s2.Keys(), s.Keys())
		}
		for k, want := range data {
			if got, _ := s2.Get(k); !reflect.DeepEqual(got, want) {
				t.Errorf("Get(%q) = %#v, want %#v", k, got, want)
			}
		}
	})

	t.Run("save failure keeps memory", func(t *testing.T) {
		s, _ := setupStore(t)
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		breakPrimary(t, s)
		if err := s.Set("a", 2); !errors.Is(err, ErrPersistence) {
			t.Fatalf("Set error = %v, want ErrPersistence", err)
		}
		if v, _ := s.Get("a"); v != 2.0 {
			t.Errorf("Get(a) = %v, want 2 kept in memory", v)
		}
		if err := s.Save(); !errors.Is(err, ErrPersistence) {
			t.Errorf("Save() = %v, want ErrPersistence", err)
		}
	})

	t.Run("save and reload", func(t *testing.T) {
		s, path := setupStore(t)
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		// Another writer replaces the file behind our back.
		if err := os.WriteFile(path, []byte(`{"b": 2}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := s.Reload(); err != nil {
			t.Fatalf("Reload failed: %v", err)
		}
		if s.Has("a") || !s.Has("b") {
			t.Errorf("Keys() = %v after Reload, want [b]", s.Keys())
		}
		if err := s.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if got := reopen(t, path).Keys(); !slices.Equal(got, []string{"b"}) {
			t.Errorf("Keys() = %v, want [b]", got)
		}
	})

	t.Run("reload of corrupt file uses backup", func(t *testing.T) {
		s, path := setupStore(t)
		if err := s.Set("a", 1); err != nil {
			t.Fatal(err)
		}
		if err := s.Set("b", 2); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := s.Reload(); err != nil {
			t.Fatal(err)
		}
		if got := s.Keys(); !slices.Equal(got, []string{"a"}) {
			t.Errorf("Keys() = %v, want [a]", got)
		}
	})
}
