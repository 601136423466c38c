package persist

import (
	"context"
	"testing"
)

func TestMemoryPlayerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPlayerStore()

	if _, err := s.LoadPlayerState(ctx, "nobody"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := s.SavePlayerState(ctx, "alice", []byte("saved state")); err != nil {
		t.Fatalf("SavePlayerState: %v", err)
	}

	got, err := s.LoadPlayerState(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadPlayerState: %v", err)
	}
	if string(got) != "saved state" {
		t.Errorf("got %q, want %q", got, "saved state")
	}
}

func TestMemoryPlayerStoreIsolatesReturnedSlice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPlayerStore()
	if err := s.SavePlayerState(ctx, "bob", []byte("original")); err != nil {
		t.Fatalf("SavePlayerState: %v", err)
	}

	got, _ := s.LoadPlayerState(ctx, "bob")
	got[0] = 'X'

	again, _ := s.LoadPlayerState(ctx, "bob")
	if string(again) != "original" {
		t.Errorf("mutating a loaded slice corrupted stored state: %q", again)
	}
}
