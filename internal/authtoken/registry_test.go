package authtoken

import (
	"testing"
	"time"
)

func TestRegisterAndClaim(t *testing.T) {
	r := NewRegistry(20 * time.Second)
	now := time.Now()

	token, err := r.Register(now, []byte("0123456789abcdef"), "player-1")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	entry, ok := r.Claim(token, now)
	if !ok {
		t.Fatal("expected freshly registered token to be claimable")
	}
	if entry.PlayerID != "player-1" {
		t.Errorf("player id = %q, want player-1", entry.PlayerID)
	}
}

func TestClaimUnknownToken(t *testing.T) {
	r := NewRegistry(20 * time.Second)
	if _, ok := r.Claim(0xDEADBEEF, time.Now()); ok {
		t.Error("expected unknown token to fail claim")
	}
}

func TestClaimExpiredToken(t *testing.T) {
	r := NewRegistry(time.Second)
	now := time.Now()
	token, err := r.Register(now, []byte("0123456789abcdef"), "player-1")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	future := now.Add(2 * time.Second)
	if _, ok := r.Claim(token, future); ok {
		t.Error("expected expired token to fail claim")
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	r := NewRegistry(time.Second)
	now := time.Now()
	token, err := r.Register(now, []byte("0123456789abcdef"), "player-1")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	if !r.Refresh(token, now.Add(500*time.Millisecond)) {
		t.Fatal("expected refresh of live token to succeed")
	}

	// Without the refresh this claim (1.2s after registration) would fail
	// against the original 1s TTL.
	if _, ok := r.Claim(token, now.Add(1200*time.Millisecond)); !ok {
		t.Error("expected refreshed token to still be claimable")
	}
}

func TestRevokeRemovesToken(t *testing.T) {
	r := NewRegistry(20 * time.Second)
	now := time.Now()
	token, err := r.Register(now, []byte("0123456789abcdef"), "player-1")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	r.Revoke(token)
	if _, ok := r.Claim(token, now); ok {
		t.Error("expected revoked token to fail claim")
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	r := NewRegistry(time.Second)
	now := time.Now()

	_, err := r.Register(now, []byte("0123456789abcdef"), "expiring")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	live, err := r.Register(now, []byte("fedcba9876543210"), "live")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	// Refresh live just before the sweep point so its expiry is pushed
	// past it, while "expiring" keeps its original 1s TTL from now.
	r.Refresh(live, now.Add(900*time.Millisecond))

	removed := r.Sweep(now.Add(1200 * time.Millisecond))
	if removed != 1 {
		t.Errorf("swept %d entries, want 1", removed)
	}
	if r.Len() != 1 {
		t.Errorf("registry len = %d, want 1", r.Len())
	}
}
