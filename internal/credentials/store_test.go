package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	creds, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 0 {
		t.Errorf("expected empty map, got %d entries", len(creds))
	}
}

func TestSaveAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewStore(path)

	want := map[string]Credential{
		"user-a": {
			Token:        "tok",
			RefreshToken: "ref",
			ClientID:     "cid",
			ClientSecret: "secret",
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
			Expiry:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
	if err := store.SaveAll(want); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cred, ok := got["user-a"]
	if !ok {
		t.Fatal("user-a missing after round trip")
	}
	if cred.RefreshToken != "ref" || cred.ClientID != "cid" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if !cred.Expiry.Equal(want["user-a"].Expiry) {
		t.Errorf("expiry = %v, want %v", cred.Expiry, want["user-a"].Expiry)
	}
}

func TestSaveAllRestrictsPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewStore(path)
	if err := store.SaveAll(map[string]Credential{"u": {Token: "t"}}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestSaveAllLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	store := NewStore(path)
	if err := store.SaveAll(map[string]Credential{"u": {Token: "t"}}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "credentials.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}

func TestLoadRetriesTransientGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store := NewStore(path)

	// Repair the file while Load is retrying.
	go func() {
		time.Sleep(120 * time.Millisecond)
		valid := []byte(`{"user-a":{"token":"t"}}`)
		os.WriteFile(path, valid, 0600)
	}()

	creds, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load should have recovered: %v", err)
	}
	if _, ok := creds["user-a"]; !ok {
		t.Error("user-a missing after recovery")
	}
}

func TestRefreshWithoutRefreshTokenFailsAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewStore(path)
	expired := map[string]Credential{
		"user-a": {Token: "old", Expiry: time.Now().Add(-time.Hour)},
	}
	if err := store.SaveAll(expired); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	_, err := store.Refresh(context.Background(), "user-a")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("err = %v, want ErrAuthRequired", err)
	}
}

func TestRefreshUnknownUserFailsAuth(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	_, err := store.Refresh(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("err = %v, want ErrAuthRequired", err)
	}
}
