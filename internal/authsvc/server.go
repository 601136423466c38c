// Package authsvc implements the Auth service (spec.md §4.3): a
// four-state-per-connection TCP handshake that negotiates a CWC session
// key, a game session key, and finally registers a (auth_token, game_key,
// player_id) triple with the Game service so the client's first RUDP SYN
// can be claimed. Grounded on the teacher's internal/login state-per-
// connection handler (handler.go, client.go State), generalized from the
// teacher's many-opcode Blowfish session to this module's fixed four-step
// RSA→CWC handshake. Auth and Game share one process (cmd/gameserver, see
// DESIGN.md), so the registration in the last step is a direct call into
// an in-process internal/authtoken.Registry, not an RPC.
package authsvc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/udisondev/frpg2go/internal/authtoken"
	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/constants"
	"github.com/udisondev/frpg2go/internal/protocol"
)

// Server is the Auth TCP service.
type Server struct {
	cfg    config.AuthService
	keys   *cipher.RSAKeyPair
	tokens *authtoken.Registry

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds an Auth service bound to cfg, signing/decrypting with
// keys (the same RSA keypair the Login service uses), registering
// completed handshakes with tokens.
func NewServer(cfg config.AuthService, keys *cipher.RSAKeyPair, tokens *authtoken.Registry) *Server {
	return &Server{cfg: cfg, keys: keys, tokens: tokens}
}

// Addr returns the address the server is listening on, or nil if Run/Serve
// hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener, unblocking Run/Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("authsvc: listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled or ln is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	slog.Info("auth service started", "address", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			select {
			case <-ctx.Done():
			default:
				slog.Error("authsvc: accept failed", "err", err)
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(conn)
		}()
	}
	wg.Wait()
	return nil
}

func (s *Server) timeout() time.Duration {
	if s.cfg.ClientTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.cfg.ClientTimeoutSeconds) * time.Second
}

// handleConnection runs spec.md §4.3's four states in sequence, closing
// the connection silently on any malformed input, wrong message kind, or
// timeout.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	timeout := s.timeout()

	cwc, ok := s.awaitHandshake(conn, remote, timeout)
	if !ok {
		return
	}

	if !s.awaitServiceStatus(conn, cwc, remote, timeout) {
		return
	}

	gameKey, ok := s.awaitKeyExchange(conn, cwc, remote, timeout)
	if !ok {
		return
	}

	s.awaitTicket(conn, cwc, gameKey, remote, timeout)
}

// awaitHandshake is the RSA-ciphered first message: the client sends its
// chosen CWC key, the server replies with a 27-byte fill and switches its
// cipher to CWC.
func (s *Server) awaitHandshake(conn net.Conn, remote string, timeout time.Duration) (*cipher.CWC, bool) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		slog.Error("authsvc: setting deadline", "err", err, "remote", remote)
		return nil, false
	}

	_, ciphertext, err := protocol.ReadFrame(conn, protocol.NoCipher)
	if err != nil {
		slog.Debug("authsvc: reading handshake frame", "err", err, "remote", remote)
		return nil, false
	}

	plain, err := s.keys.DecryptOAEP(ciphertext)
	if err != nil {
		slog.Warn("authsvc: RSA decrypt failed", "err", err, "remote", remote)
		return nil, false
	}
	if len(plain) < constants.MessageHeaderSize+constants.GameSessionKeySize {
		slog.Warn("authsvc: RequestHandshake too short", "remote", remote)
		return nil, false
	}

	reqHeader, err := protocol.DecodeMessageHeader(plain)
	if err != nil {
		slog.Warn("authsvc: decoding handshake header", "err", err, "remote", remote)
		return nil, false
	}

	cwcKey := plain[constants.MessageHeaderSize : constants.MessageHeaderSize+constants.GameSessionKeySize]
	cwc, err := cipher.NewCWC(cwcKey)
	if err != nil {
		slog.Warn("authsvc: building CWC cipher", "err", err, "remote", remote)
		return nil, false
	}

	// A 27-byte fill: 11 random bytes followed by 16 zero bytes. The fill
	// has no documented meaning beyond acknowledging the key switch
	// (spec.md §4.3); it is not itself CWC-sealed data.
	fill := make([]byte, 27)
	if _, err := rand.Read(fill[:11]); err != nil {
		slog.Error("authsvc: generating handshake fill", "err", err, "remote", remote)
		return nil, false
	}

	if err := s.writeMessage(conn, cwc, reqHeader.RequestIndex, fill); err != nil {
		slog.Warn("authsvc: sending handshake reply", "err", err, "remote", remote)
		return nil, false
	}

	return cwc, true
}

func (s *Server) awaitServiceStatus(conn net.Conn, cwc *cipher.CWC, remote string, timeout time.Duration) bool {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		slog.Error("authsvc: setting deadline", "err", err, "remote", remote)
		return false
	}

	header, body, err := s.readMessage(conn, cwc)
	if err != nil {
		slog.Debug("authsvc: reading service status", "err", err, "remote", remote)
		return false
	}

	var status GetServiceStatus
	if err := status.Unmarshal(body); err != nil {
		slog.Warn("authsvc: decoding GetServiceStatus", "err", err, "remote", remote)
		return false
	}
	slog.Info("authsvc: service status", "id", status.ID, "steam_id", status.SteamID, "app_version", status.AppVersion, "remote", remote)

	resp := GetServiceStatusResponse{Status: 0}
	respBody, err := resp.Marshal()
	if err != nil {
		slog.Error("authsvc: marshaling service status response", "err", err, "remote", remote)
		return false
	}

	if err := s.writeMessage(conn, cwc, header.RequestIndex, respBody); err != nil {
		slog.Warn("authsvc: sending service status response", "err", err, "remote", remote)
		return false
	}
	return true
}

func (s *Server) awaitKeyExchange(conn net.Conn, cwc *cipher.CWC, remote string, timeout time.Duration) ([]byte, bool) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		slog.Error("authsvc: setting deadline", "err", err, "remote", remote)
		return nil, false
	}

	header, body, err := s.readMessage(conn, cwc)
	if err != nil {
		slog.Debug("authsvc: reading key exchange", "err", err, "remote", remote)
		return nil, false
	}
	if len(body) != constants.GameSessionKeyHalfSize {
		slog.Warn("authsvc: bad key exchange length", "len", len(body), "remote", remote)
		return nil, false
	}

	serverHalf := make([]byte, constants.GameSessionKeyHalfSize)
	if _, err := rand.Read(serverHalf); err != nil {
		slog.Error("authsvc: generating server key half", "err", err, "remote", remote)
		return nil, false
	}

	gameKey := make([]byte, 0, constants.GameSessionKeySize)
	gameKey = append(gameKey, body...)
	gameKey = append(gameKey, serverHalf...)

	if err := s.writeMessage(conn, cwc, header.RequestIndex, gameKey); err != nil {
		slog.Warn("authsvc: sending key exchange reply", "err", err, "remote", remote)
		return nil, false
	}

	return gameKey, true
}

func (s *Server) awaitTicket(conn net.Conn, cwc *cipher.CWC, gameKey []byte, remote string, timeout time.Duration) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		slog.Error("authsvc: setting deadline", "err", err, "remote", remote)
		return
	}

	header, body, err := s.readMessage(conn, cwc)
	if err != nil {
		slog.Debug("authsvc: reading ticket", "err", err, "remote", remote)
		return
	}

	maxTicket := s.cfg.MaxTicketSize
	if maxTicket <= 0 {
		maxTicket = 4096
	}
	if len(body) > maxTicket {
		slog.Warn("authsvc: ticket too large", "size", len(body), "max", maxTicket, "remote", remote)
		return
	}

	playerID := identityFromTicket(body)

	token, err := s.tokens.Register(time.Now(), gameKey, playerID)
	if err != nil {
		slog.Error("authsvc: registering auth token", "err", err, "remote", remote)
		return
	}

	info := GameServerInfo{
		AuthToken:    token,
		GameServerIP: s.cfg.GameHost,
		GamePort:     uint16(s.cfg.GamePort),
	}
	infoBytes := info.Encode()

	if err := s.writeMessage(conn, cwc, header.RequestIndex, infoBytes[:]); err != nil {
		slog.Warn("authsvc: sending GameServerInfo", "err", err, "remote", remote)
		return
	}

	slog.Info("authsvc: handshake complete", "player_id", playerID, "remote", remote)
}

// identityFromTicket treats the ticket payload as a UTF-8 player identity
// when it is valid text, and as opaque bytes (hex-encoded for logging and
// keying) otherwise. The reference never documents a ticket format beyond
// "identity ticket of bounded size" (spec.md §4.3).
func identityFromTicket(ticket []byte) string {
	if utf8.Valid(ticket) {
		if s := strings.TrimRight(string(ticket), "\x00 "); s != "" {
			return s
		}
	}
	return hex.EncodeToString(ticket)
}

func (s *Server) readMessage(conn net.Conn, enc protocol.Cipher) (protocol.MessageHeader, []byte, error) {
	_, payload, err := protocol.ReadFrame(conn, enc)
	if err != nil {
		return protocol.MessageHeader{}, nil, err
	}
	if len(payload) < constants.MessageHeaderSize {
		return protocol.MessageHeader{}, nil, fmt.Errorf("authsvc: payload too short: %d bytes", len(payload))
	}
	header, err := protocol.DecodeMessageHeader(payload)
	if err != nil {
		return protocol.MessageHeader{}, nil, err
	}
	return header, payload[constants.MessageHeaderSize:], nil
}

func (s *Server) writeMessage(conn net.Conn, enc protocol.Cipher, requestIndex uint32, body []byte) error {
	header := protocol.MessageHeader{RequestIndex: requestIndex, IsResponse: true}
	headerBytes := header.Encode()
	var sub protocol.ResponseSubHeader

	payload := make([]byte, 0, len(headerBytes)+len(sub.Raw)+len(body))
	payload = append(payload, headerBytes[:]...)
	payload = append(payload, sub.Raw[:]...)
	payload = append(payload, body...)

	return protocol.WriteFrame(conn, enc, 0, payload)
}
