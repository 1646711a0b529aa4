package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileStoreRejectsEmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.SetTokens(context.Background(), TokenPair{AccessToken: "a"}); err != nil {
		t.Fatalf("SetTokens: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected credential file to exist: %v", err)
	}
}

func TestFileStoreWritesOwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := s.SetSession(context.Background(), TokenPair{AccessToken: "a", RefreshToken: "r"}, []byte(`{}`)); err != nil {
		t.Fatalf("SetSession: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("file mode = %o, want 600", got)
	}
}

func TestFileStoreTreatsCorruptDocumentAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	ctx := context.Background()
	if access, err := s.AccessToken(ctx); err != nil || access != "" {
		t.Fatalf("corrupt read = (%q, %v), want empty without error", access, err)
	}
	if profile, err := s.Profile(ctx); err != nil || profile != nil {
		t.Fatalf("corrupt profile read = (%v, %v), want nil without error", profile, err)
	}

	// A corrupt store must still accept fresh writes.
	if err := s.SetSession(ctx, TokenPair{AccessToken: "a"}, []byte(`{"id":"u"}`)); err != nil {
		t.Fatalf("SetSession over corrupt file: %v", err)
	}
	if access, _ := s.AccessToken(ctx); access != "a" {
		t.Fatalf("access after rewrite = %q, want a", access)
	}
}

func TestFileStoreClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	ctx := context.Background()
	if err := s.SetTokens(ctx, TokenPair{AccessToken: "a"}); err != nil {
		t.Fatalf("SetTokens: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	// Clearing a store whose file never existed is fine.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
}
