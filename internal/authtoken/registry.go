// Package authtoken implements the short-lived handoff registry between
// the Auth and Game services (spec.md §3, §4.3, §4.4): Auth completes a
// handshake and mints a random 64-bit token bound to the negotiated game
// session key and player identity; Game claims it on the first RUDP SYN
// and refreshes it on every subsequent packet. An entry not claimed within
// its TTL is swept so a token can never sit forever without a UDP session
// following it.
package authtoken

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// Entry is the pending (or claimed) state behind one auth token.
type Entry struct {
	Token    uint64
	GameKey  []byte // 16-byte AES-CWC-UDP session key
	PlayerID string

	claimed    bool
	expiresAt  time.Time
}

// Registry maps auth tokens to their pending Entry, as created by Auth and
// consumed by Game. Safe for concurrent use.
type Registry struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[uint64]*Entry
}

// NewRegistry builds a Registry whose unclaimed entries expire after ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:     ttl,
		entries: make(map[uint64]*Entry),
	}
}

// Register mints a fresh random token bound to gameKey/playerID and stores
// it with a fresh expiry, as the last step of the Auth state machine
// (spec.md §4.3 AwaitTicket).
func (r *Registry) Register(now time.Time, gameKey []byte, playerID string) (uint64, error) {
	token, err := randomToken()
	if err != nil {
		return 0, fmt.Errorf("generating auth token: %w", err)
	}

	keyCopy := make([]byte, len(gameKey))
	copy(keyCopy, gameKey)

	r.mu.Lock()
	r.entries[token] = &Entry{
		Token:     token,
		GameKey:   keyCopy,
		PlayerID:  playerID,
		expiresAt: now.Add(r.ttl),
	}
	r.mu.Unlock()

	return token, nil
}

// Claim looks up token, returning its Entry and marking it claimed (so the
// first successful SYN refreshes, rather than consumes, the registration).
// Returns ok=false if the token is unknown or expired.
func (r *Registry) Claim(token uint64, now time.Time) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok || now.After(e.expiresAt) {
		return Entry{}, false
	}
	e.claimed = true
	e.expiresAt = now.Add(r.ttl)
	return *e, true
}

// Refresh extends token's expiry, called on every packet received by an
// established Game session (spec.md §4.4).
func (r *Registry) Refresh(token uint64, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return false
	}
	e.expiresAt = now.Add(r.ttl)
	return true
}

// Revoke destroys a token's registration, called when its session
// disconnects (spec.md §3 "destroyed on disconnect").
func (r *Registry) Revoke(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, token)
}

// Sweep removes every entry whose expiry has passed, returning the count
// removed. Intended to run on a ticker alongside the Game service's
// session-reaper loop.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, token)
			removed++
		}
	}
	return removed
}

// Len reports the number of live (possibly claimed) entries, for tests and
// diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func randomToken() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
