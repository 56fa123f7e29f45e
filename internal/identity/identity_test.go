package identity

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore("berghain-runner-test", filepath.Join(t.TempDir(), "secrets.json"))
	t.Cleanup(func() { _ = s.Reset() })
	return s
}

func TestPlayerIDMintsOnce(t *testing.T) {
	s := newTestStore(t)

	first, err := s.PlayerID()
	if err != nil {
		t.Fatalf("PlayerID: %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("minted id is not a UUID: %q", first)
	}

	second, err := s.PlayerID()
	if err != nil {
		t.Fatalf("PlayerID: %v", err)
	}
	if second != first {
		t.Errorf("id changed between calls: %q then %q", first, second)
	}
}

func TestSetPlayerID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetPlayerID("88539b16-3002-47ff-a234-10d9474cbb9c"); err != nil {
		t.Fatalf("SetPlayerID: %v", err)
	}
	got, err := s.PlayerID()
	if err != nil {
		t.Fatalf("PlayerID: %v", err)
	}
	if got != "88539b16-3002-47ff-a234-10d9474cbb9c" {
		t.Errorf("unexpected id: %q", got)
	}

	if err := s.SetPlayerID("  "); err == nil {
		t.Error("expected an error for a blank id")
	}
}

func TestResetMintsFresh(t *testing.T) {
	s := newTestStore(t)

	first, err := s.PlayerID()
	if err != nil {
		t.Fatalf("PlayerID: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second, err := s.PlayerID()
	if err != nil {
		t.Fatalf("PlayerID after reset: %v", err)
	}
	if second == first {
		t.Errorf("expected a fresh id after reset, got %q again", second)
	}
}
