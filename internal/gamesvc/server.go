// Package gamesvc implements the Game service (spec.md §4.4): one UDP
// socket multiplexing every connected player, demultiplexed by source
// (ip, port) into per-session actor goroutines. Grounded on the teacher's
// goroutine-per-connection accept loop (internal/login/server.go),
// generalized from one-goroutine-per-TCP-conn to one receive loop handing
// decrypted datagrams to one goroutine per session over a channel — model
// 2 of spec.md §5's two admissible concurrency models, chosen because each
// session's rudp.Stream/message.Stream state is mutated by exactly one
// goroutine, with no locking needed once a session is admitted.
package gamesvc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/udisondev/frpg2go/internal/authtoken"
	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/message"
	"github.com/udisondev/frpg2go/internal/rudp"
	"github.com/udisondev/frpg2go/internal/session"
)

// SessionFactory builds a new Session for a just-admitted player,
// attaching whatever PlayerHandle and CleanupHook a title's game-logic
// layer needs (spec.md §1 Non-goals: the core never looks inside
// PlayerHandle). Server calls this exactly once per admitted (ip, port).
type SessionFactory func(addr *net.UDPAddr, playerID string, gameKey []byte) *session.Session

// inboxCapacity bounds how many not-yet-processed datagrams one session's
// actor goroutine may have queued before the receive loop starts dropping
// its traffic rather than blocking every other session.
const inboxCapacity = 64

// liveSession is the Server's bookkeeping for one admitted player, wrapping
// the transport-agnostic session.Session with the UDP-specific pieces
// (auth token, per-session send cipher, the addr it is reachable at).
type liveSession struct {
	sess   *session.Session
	token  uint64
	addr   net.Addr
	toPeer *cipher.CWCUDPServer

	inbox chan []byte
}

// Server is the Game UDP service.
type Server struct {
	cfg     config.GameService
	rudpCfg config.RUDPConfig
	tokens  *authtoken.Registry
	handler message.Handler
	newSession SessionFactory

	pc net.PacketConn

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// NewServer builds a Game service bound to cfg/rudpCfg, claiming auth
// tokens from tokens, dispatching delivered messages to handler, and
// building each admitted player's Session via newSession.
func NewServer(cfg config.GameService, rudpCfg config.RUDPConfig, tokens *authtoken.Registry, handler message.Handler, newSession SessionFactory) *Server {
	return &Server{
		cfg:        cfg,
		rudpCfg:    rudpCfg,
		tokens:     tokens,
		handler:    handler,
		newSession: newSession,
		sessions:   make(map[string]*liveSession),
	}
}

// Addr returns the address the server is listening on, or nil before
// Run/Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return nil
	}
	return s.pc.LocalAddr()
}

// SessionCount reports the number of currently admitted sessions, for
// tests and diagnostics.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes the underlying socket, unblocking Run/Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc != nil {
		return s.pc.Close()
	}
	return nil
}

// Run opens cfg.BindAddress:cfg.Port and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("gamesvc: listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, pc)
}

// Serve runs the receive loop and idle-reap loop over pc until ctx is
// canceled or pc is closed.
func (s *Server) Serve(ctx context.Context, pc net.PacketConn) error {
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	slog.Info("game service started", "address", pc.LocalAddr())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reapLoop(ctx)
	}()

	s.receiveLoop(ctx, pc)
	wg.Wait()
	return nil
}

func (s *Server) receiveLoop(ctx context.Context, pc net.PacketConn) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			slog.Warn("gamesvc: read failed", "err", err)
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		s.mu.Lock()
		ls, ok := s.sessions[addr.String()]
		s.mu.Unlock()

		if ok {
			select {
			case ls.inbox <- frame:
			default:
				slog.Warn("gamesvc: session inbox saturated, dropping datagram", "player_id", ls.sess.PlayerID)
			}
			continue
		}

		s.admit(ctx, addr, frame)
	}
}

// admit processes a datagram from an address with no existing session: it
// must decrypt as a valid SYN under a registered auth token, or it is
// dropped (spec.md §4.4).
func (s *Server) admit(ctx context.Context, addr net.Addr, frame []byte) {
	if len(frame) < 8 {
		return
	}
	token := binary.BigEndian.Uint64(frame[:8])

	entry, ok := s.tokens.Claim(token, time.Now())
	if !ok {
		slog.Debug("gamesvc: unknown or expired auth token", "addr", addr)
		return
	}

	_, _, plaintext, err := cipher.DecryptClientUDPFrame(entry.GameKey, frame)
	if err != nil {
		slog.Debug("gamesvc: admission decrypt failed", "addr", addr, "err", err)
		return
	}

	hdr, err := rudp.DecodeHeader(plaintext)
	if err != nil || hdr.Opcode != rudp.OpSYN {
		slog.Debug("gamesvc: first datagram from new address was not a SYN", "addr", addr)
		return
	}

	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		slog.Error("gamesvc: non-UDP address from PacketConn", "addr", addr)
		return
	}

	toPeer, err := cipher.NewCWCUDPServer(entry.GameKey)
	if err != nil {
		slog.Error("gamesvc: building server UDP cipher", "err", err, "addr", addr)
		return
	}

	sess := s.newSession(udpAddr, entry.PlayerID, entry.GameKey)
	ls := &liveSession{
		sess:   sess,
		token:  token,
		addr:   addr,
		toPeer: toPeer,
		inbox:  make(chan []byte, inboxCapacity),
	}

	s.mu.Lock()
	s.sessions[addr.String()] = ls
	s.mu.Unlock()

	slog.Info("gamesvc: session admitted", "player_id", entry.PlayerID, "addr", addr)

	go s.runSession(ctx, ls)

	ls.inbox <- frame
}

// runSession is the per-session actor: it owns ls.sess exclusively, fed by
// the receive loop's channel and its own pump ticker.
func (s *Server) runSession(ctx context.Context, ls *liveSession) {
	defer s.destroySession(ls)

	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ls.inbox:
			if !ok {
				return
			}
			if destroy := s.handleInbound(ls, frame); destroy {
				return
			}
		case <-ticker.C:
			if destroy := s.handlePump(ls); destroy {
				return
			}
		}
	}
}

// pumpInterval is how often a session's actor advances retransmission,
// heartbeat and idle-timeout bookkeeping (spec.md §4.5).
const pumpInterval = 50 * time.Millisecond

// handleInbound decrypts and processes one datagram for an admitted
// session, returning true if the session should now be destroyed.
func (s *Server) handleInbound(ls *liveSession, frame []byte) bool {
	now := time.Now()

	token, _, plaintext, err := cipher.DecryptClientUDPFrame(ls.sess.GameKey, frame)
	if err != nil {
		slog.Debug("gamesvc: decrypt error, dropping session", "player_id", ls.sess.PlayerID, "err", err)
		return true
	}
	if token != ls.token {
		slog.Warn("gamesvc: auth token mismatch, dropping datagram", "player_id", ls.sess.PlayerID)
		return false
	}
	s.tokens.Refresh(token, now)

	delivered, outbound, err := ls.sess.RUDP.HandlePacket(now, plaintext)
	if err != nil {
		slog.Debug("gamesvc: rudp decode error, dropping session", "player_id", ls.sess.PlayerID, "err", err)
		return true
	}
	s.sendOutbound(ls, outbound)

	for _, payload := range delivered {
		if s.dispatch(ls, payload) {
			return true
		}
	}
	return ls.sess.RUDP.State() == rudp.StateClosed
}

// dispatch feeds one delivered fragment through the message layer and, once
// a full message is reassembled, the title handler. Returns true if a
// handler error means the session must be destroyed (spec.md §4.7).
func (s *Server) dispatch(ls *liveSession, payload []byte) bool {
	env, body, ok, err := ls.sess.Message.Feed(payload)
	if err != nil {
		// Protocol error (e.g. reply to an unknown message index): log and
		// drop, do not close the session (spec.md §7).
		slog.Warn("gamesvc: message feed error", "player_id", ls.sess.PlayerID, "err", err)
		return false
	}
	if !ok {
		return false
	}

	if s.handler == nil {
		return false
	}

	outcome, err := s.handler.Handle(ls.sess.Message, env, body)
	if err != nil {
		slog.Warn("gamesvc: handler error", "player_id", ls.sess.PlayerID, "opcode", env.Opcode, "err", err)
	}
	switch outcome {
	case message.Errored:
		return true
	case message.Unhandled:
		slog.Warn("gamesvc: unhandled opcode", "player_id", ls.sess.PlayerID, "opcode", env.Opcode)
	}
	return false
}

// handlePump advances one session's retransmit/heartbeat/idle-timeout
// timers, returning true if the session should now be destroyed.
func (s *Server) handlePump(ls *liveSession) bool {
	now := time.Now()

	idleTimeout := s.cfg.SessionIdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	heartbeat := s.rudpCfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 10 * time.Second
	}

	outbound, err := ls.sess.RUDP.Pump(now, heartbeat, idleTimeout)
	s.sendOutbound(ls, outbound)
	if err != nil {
		slog.Info("gamesvc: session idle timeout", "player_id", ls.sess.PlayerID)
		return true
	}
	return ls.sess.RUDP.State() == rudp.StateClosed
}

func (s *Server) sendOutbound(ls *liveSession, outbound [][]byte) {
	if len(outbound) == 0 {
		return
	}
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return
	}

	for _, raw := range outbound {
		encrypted, err := ls.toPeer.Encrypt(raw)
		if err != nil {
			slog.Error("gamesvc: encrypting outbound packet", "player_id", ls.sess.PlayerID, "err", err)
			continue
		}
		if _, err := pc.WriteTo(encrypted, ls.addr); err != nil {
			slog.Warn("gamesvc: write failed", "player_id", ls.sess.PlayerID, "err", err)
		}
	}
}

func (s *Server) destroySession(ls *liveSession) {
	s.mu.Lock()
	delete(s.sessions, ls.addr.String())
	s.mu.Unlock()

	s.tokens.Revoke(ls.token)
	ls.sess.Destroy()

	slog.Info("gamesvc: session destroyed", "player_id", ls.sess.PlayerID, "addr", ls.addr)
}

// reapLoop periodically sweeps every expired auth-token registration,
// claimed or not (spec.md §4.4: "Auth-token registration... has its own
// expiry"). A live session keeps its claimed token fresh by refreshing it
// on each received datagram, and destroySession revokes it.
func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.tokens.Sweep(time.Now()); n > 0 {
				slog.Debug("gamesvc: swept expired auth tokens", "count", n)
			}
		}
	}
}
