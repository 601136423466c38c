// Package session owns the per-player state that survives across one
// Game UDP connection (spec.md §3, §4.4): the RUDP connection state, the
// message-layer request/reply bookkeeping above it, and an opaque handle
// to whatever a title's game-logic layer needs to track. Grounded on the
// teacher's per-connection state struct in internal/login/session.go,
// generalized from a single TCP conn to the RUDP+message stack.
package session

import (
	"net"
	"time"

	"github.com/udisondev/frpg2go/internal/message"
	"github.com/udisondev/frpg2go/internal/rudp"
)

// PlayerHandle is whatever a title's game-logic layer attaches to a
// Session; the core never inspects it (spec.md §1 Non-goals keep
// game-logic handlers out of scope).
type PlayerHandle any

// CleanupHook is called once when a Session is destroyed — on explicit
// close, idle timeout, or reset — so a title can release whatever it
// attached as PlayerHandle (e.g. remove the player's live artifacts from
// an areapool.Pool).
type CleanupHook func(*Session)

// Session is one authenticated Game UDP peer.
type Session struct {
	Addr      *net.UDPAddr
	PlayerID  string
	GameKey   []byte

	RUDP    *rudp.Stream
	Message *message.Stream

	Player PlayerHandle

	createdAt time.Time
	cleanup   []CleanupHook
}

// New builds a Session in the rudp.Stream's initial Listening state,
// ready to receive the peer's SYN.
func New(addr *net.UDPAddr, playerID string, gameKey []byte, table *message.Table, rudpCfg rudp.Config, maxFragmentLen, minCompressSize int) *Session {
	rs := rudp.NewStream(rudpCfg)
	return &Session{
		Addr:      addr,
		PlayerID:  playerID,
		GameKey:   gameKey,
		RUDP:      rs,
		Message:   message.NewStream(rs, table, maxFragmentLen, minCompressSize),
		createdAt: time.Now(),
	}
}

// OnCleanup registers a hook run exactly once when the session is
// destroyed. Hooks run in registration order.
func (s *Session) OnCleanup(hook CleanupHook) {
	s.cleanup = append(s.cleanup, hook)
}

// Destroy runs every registered cleanup hook. The caller is responsible
// for removing the Session from whatever table indexes it by address;
// Destroy only releases per-session state.
func (s *Session) Destroy() {
	for _, hook := range s.cleanup {
		hook(s)
	}
}
