package loginsvc

import (
	"net"
	"testing"
	"time"

	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/constants"
	"github.com/udisondev/frpg2go/internal/protocol"
	"github.com/udisondev/frpg2go/internal/testutil"
)

func testConfig(authHost string, authPort int) config.LoginServer {
	cfg := config.DefaultLoginServer()
	cfg.ClientTimeoutSeconds = 2
	cfg.AuthHost = authHost
	cfg.AuthPort = authPort
	return cfg
}

func sendQuery(t *testing.T, conn net.Conn, pub *cipher.RSAKeyPair, req QueryLoginServerInfo) {
	t.Helper()

	body, err := req.Marshal()
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	header := protocol.MessageHeader{RequestIndex: 1, IsResponse: false}
	headerBytes := header.Encode()

	plain := make([]byte, 0, len(headerBytes)+len(body))
	plain = append(plain, headerBytes[:]...)
	plain = append(plain, body...)

	ciphertext, err := cipher.EncryptOAEP(pub.Public(), plain)
	if err != nil {
		t.Fatalf("RSA-OAEP encrypt: %v", err)
	}

	if err := protocol.WriteFrame(conn, protocol.NoCipher, 0, ciphertext); err != nil {
		t.Fatalf("writing handshake frame: %v", err)
	}
}

func TestHandleConnectionRepliesWithAuthEndpoint(t *testing.T) {
	keys, err := cipher.GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("generating RSA keypair: %v", err)
	}

	client, server := testutil.PipeConn(t)
	srv := NewServer(testConfig("auth.example.test", 50010), keys)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConnection(server)
	}()

	sendQuery(t, client, keys, QueryLoginServerInfo{ClientID: "player-1", AppVersion: 115})

	_, payload, err := protocol.ReadFrame(client, protocol.NoCipher)
	if err != nil {
		t.Fatalf("reading reply frame: %v", err)
	}
	if len(payload) < constants.MessageHeaderSize+constants.ResponseSubHeaderSize {
		t.Fatalf("reply payload too short: %d bytes", len(payload))
	}

	respHeader, err := protocol.DecodeMessageHeader(payload)
	if err != nil {
		t.Fatalf("decoding response header: %v", err)
	}
	if !respHeader.IsResponse {
		t.Error("expected IsResponse = true")
	}
	if respHeader.RequestIndex != 1 {
		t.Errorf("RequestIndex = %d, want 1", respHeader.RequestIndex)
	}

	body := payload[constants.MessageHeaderSize+constants.ResponseSubHeaderSize:]
	var resp LoginServerInfoResponse
	if err := resp.Unmarshal(body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	if resp.AuthHost != "auth.example.test" || resp.AuthPort != 50010 {
		t.Errorf("response = %+v, want {auth.example.test 50010}", resp)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConnection did not close the connection")
	}
}

func TestHandleConnectionClosesOnGarbageHandshake(t *testing.T) {
	keys, err := cipher.GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("generating RSA keypair: %v", err)
	}

	client, server := testutil.PipeConn(t)
	srv := NewServer(testConfig("auth.example.test", 50010), keys)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConnection(server)
	}()

	if err := protocol.WriteFrame(client, protocol.NoCipher, 0, []byte("not RSA ciphertext")); err != nil {
		t.Fatalf("writing garbage frame: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConnection did not close on malformed handshake")
	}
}
