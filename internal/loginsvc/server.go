// Package loginsvc implements the Login service (spec.md §4.2): a TCP
// endpoint that accepts exactly one RSA-keyed request per connection and
// points the client at the Auth service's public endpoint. Grounded on the
// teacher's internal/login accept-loop structure (server.go), generalized
// from the teacher's many-packet-kind Blowfish session to this module's
// single-message RSA handshake.
package loginsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/constants"
	"github.com/udisondev/frpg2go/internal/protocol"
)

// Server is the Login TCP service.
type Server struct {
	cfg  config.LoginServer
	keys *cipher.RSAKeyPair

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds a Login service bound to cfg and signing/decrypting
// with keys (the same RSA keypair the Auth service uses, see DESIGN.md).
func NewServer(cfg config.LoginServer, keys *cipher.RSAKeyPair) *Server {
	return &Server{cfg: cfg, keys: keys}
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
		return fmt.Errorf("login: listening on %s: %w", addr, err)
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
	slog.Info("login service started", "address", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			select {
			case <-ctx.Done():
			default:
				slog.Error("login: accept failed", "err", err)
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

// handleConnection implements spec.md §4.2's four steps for one connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	timeout := time.Duration(s.cfg.ClientTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		slog.Error("login: setting deadline", "err", err, "remote", remote)
		return
	}

	_, ciphertext, err := protocol.ReadFrame(conn, protocol.NoCipher)
	if err != nil {
		slog.Debug("login: reading handshake frame", "err", err, "remote", remote)
		return
	}

	plain, err := s.keys.DecryptOAEP(ciphertext)
	if err != nil {
		slog.Warn("login: RSA decrypt failed", "err", err, "remote", remote)
		return
	}
	if len(plain) < constants.MessageHeaderSize {
		slog.Warn("login: handshake payload too short", "remote", remote)
		return
	}

	reqHeader, err := protocol.DecodeMessageHeader(plain)
	if err != nil {
		slog.Warn("login: decoding message header", "err", err, "remote", remote)
		return
	}

	var req QueryLoginServerInfo
	if err := req.Unmarshal(plain[constants.MessageHeaderSize:]); err != nil {
		slog.Warn("login: decoding QueryLoginServerInfo", "err", err, "remote", remote)
		return
	}

	slog.Info("login: query received", "client_id", req.ClientID, "app_version", req.AppVersion, "remote", remote)

	if err := s.reply(conn, reqHeader.RequestIndex); err != nil {
		slog.Warn("login: sending reply", "err", err, "remote", remote)
		return
	}

	slog.Debug("login: replied with auth endpoint", "remote", remote, "auth_host", s.cfg.AuthHost, "auth_port", s.cfg.AuthPort)
}

func (s *Server) reply(conn net.Conn, requestIndex uint32) error {
	resp := LoginServerInfoResponse{AuthHost: s.cfg.AuthHost, AuthPort: uint32(s.cfg.AuthPort)}
	respBody, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	respHeader := protocol.MessageHeader{RequestIndex: requestIndex, IsResponse: true}
	headerBytes := respHeader.Encode()
	var subHeader protocol.ResponseSubHeader

	payload := make([]byte, 0, len(headerBytes)+len(subHeader.Raw)+len(respBody))
	payload = append(payload, headerBytes[:]...)
	payload = append(payload, subHeader.Raw[:]...)
	payload = append(payload, respBody...)

	return protocol.WriteFrame(conn, protocol.NoCipher, 0, payload)
}
