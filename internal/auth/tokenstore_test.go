package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileTokenStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStoreAt(dir)

	tok, err := store.Token()
	if err != nil || tok != "" {
		t.Fatalf("Token() on empty store = %q, %v", tok, err)
	}

	if err := store.SetToken("jwt-12345"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "auth.json"))
	if err != nil {
		t.Fatalf("auth.json not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("auth.json permissions = %v, want 0600", info.Mode().Perm())
	}

	data, _ := os.ReadFile(store.Path())
	if want := `"authToken": "jwt-12345"`; !strings.Contains(string(data), want) {
		t.Errorf("auth.json = %s, want key %s", data, want)
	}

	if tok, _ := store.Token(); tok != "jwt-12345" {
		t.Errorf("Token() = %q", tok)
	}

	if err := store.ClearToken(); err != nil {
		t.Fatalf("ClearToken() error = %v", err)
	}
	if tok, _ := store.Token(); tok != "" {
		t.Errorf("Token() after clear = %q", tok)
	}
	if err := store.ClearToken(); err != nil {
		t.Errorf("ClearToken() twice error = %v", err)
	}
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStoreAt(dir)
	os.WriteFile(store.Path(), []byte("{not json"), 0600)

	if _, err := store.Token(); err == nil {
		t.Error("Token() on corrupt file should error")
	}
	if err := store.ClearToken(); err != nil {
		t.Fatalf("ClearToken() on corrupt file error = %v", err)
	}
	if tok, err := store.Token(); err != nil || tok != "" {
		t.Errorf("Token() after reset = %q, %v", tok, err)
	}
}

func TestNewFileTokenStore_ConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPLENDID_CONFIG_DIR", dir)

	store, err := NewFileTokenStore()
	if err != nil {
		t.Fatalf("NewFileTokenStore() error = %v", err)
	}
	if store.Path() != filepath.Join(dir, "auth.json") {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"short", "*****"},
		{"eyJhbGciOiJIUzI1NiJ9", "eyJh************NiJ9"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
