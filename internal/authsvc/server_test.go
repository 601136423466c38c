package authsvc

import (
	"net"
	"testing"
	"time"

	"github.com/udisondev/frpg2go/internal/authtoken"
	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/constants"
	"github.com/udisondev/frpg2go/internal/protocol"
	"github.com/udisondev/frpg2go/internal/testutil"
)

func testConfig() config.AuthService {
	cfg := config.DefaultGameServer().Auth
	cfg.ClientTimeoutSeconds = 2
	cfg.GameHost = "10.0.0.5"
	cfg.GamePort = 50020
	return cfg
}

// clientWriteMessage mirrors Server.writeMessage, for the test's client role.
func clientWriteMessage(t *testing.T, conn net.Conn, enc protocol.Cipher, requestIndex uint32, isResponse bool, body []byte) {
	t.Helper()
	header := protocol.MessageHeader{RequestIndex: requestIndex, IsResponse: isResponse}
	headerBytes := header.Encode()

	payload := make([]byte, 0, len(headerBytes)+len(body))
	payload = append(payload, headerBytes[:]...)
	if isResponse {
		var sub protocol.ResponseSubHeader
		payload = append(payload, sub.Raw[:]...)
	}
	payload = append(payload, body...)

	if err := protocol.WriteFrame(conn, enc, 0, payload); err != nil {
		t.Fatalf("writing message: %v", err)
	}
}

func clientReadMessage(t *testing.T, conn net.Conn, enc protocol.Cipher) (protocol.MessageHeader, []byte) {
	t.Helper()
	_, payload, err := protocol.ReadFrame(conn, enc)
	if err != nil {
		t.Fatalf("reading message: %v", err)
	}
	header, err := protocol.DecodeMessageHeader(payload)
	if err != nil {
		t.Fatalf("decoding message header: %v", err)
	}
	body := payload[constants.MessageHeaderSize:]
	if header.IsResponse {
		body = body[constants.ResponseSubHeaderSize:]
	}
	return header, body
}

func TestFullHandshakeRegistersAuthToken(t *testing.T) {
	keys, err := cipher.GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("generating RSA keypair: %v", err)
	}
	tokens := authtoken.NewRegistry(20 * time.Second)

	client, server := testutil.PipeConn(t)
	srv := NewServer(testConfig(), keys, tokens)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConnection(server)
	}()

	cwcKey := []byte("0123456789ABCDEF")

	// AwaitHandshake: RSA-ciphered RequestHandshake.
	header := protocol.MessageHeader{RequestIndex: 1, IsResponse: false}
	headerBytes := header.Encode()
	plain := append(append([]byte{}, headerBytes[:]...), cwcKey...)
	ciphertext, err := cipher.EncryptOAEP(keys.Public(), plain)
	if err != nil {
		t.Fatalf("RSA-OAEP encrypt: %v", err)
	}
	if err := protocol.WriteFrame(client, protocol.NoCipher, 0, ciphertext); err != nil {
		t.Fatalf("writing handshake frame: %v", err)
	}

	cwc, err := cipher.NewCWC(cwcKey)
	if err != nil {
		t.Fatalf("building CWC cipher: %v", err)
	}

	_, fill := clientReadMessage(t, client, cwc)
	if len(fill) != 27 {
		t.Fatalf("fill length = %d, want 27", len(fill))
	}
	for i, b := range fill[11:] {
		if b != 0 {
			t.Fatalf("fill byte %d = %#x, want 0", 11+i, b)
		}
	}

	// AwaitServiceStatus.
	statusReq := GetServiceStatus{ID: 1, SteamID: "76561198000000001", AppVersion: 115}
	statusBody, _ := statusReq.Marshal()
	clientWriteMessage(t, client, cwc, 2, false, statusBody)

	_, statusRespBody := clientReadMessage(t, client, cwc)
	var statusResp GetServiceStatusResponse
	if err := statusResp.Unmarshal(statusRespBody); err != nil {
		t.Fatalf("decoding service status response: %v", err)
	}

	// AwaitKeyExchange.
	clientHalf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	clientWriteMessage(t, client, cwc, 3, false, clientHalf)

	_, fullKey := clientReadMessage(t, client, cwc)
	if len(fullKey) != 16 {
		t.Fatalf("full key length = %d, want 16", len(fullKey))
	}
	for i, b := range clientHalf {
		if fullKey[i] != b {
			t.Fatalf("full key byte %d = %#x, want %#x (client half)", i, fullKey[i], b)
		}
	}

	// AwaitTicket.
	ticket := []byte("player-42")
	clientWriteMessage(t, client, cwc, 4, false, ticket)

	_, infoBytes := clientReadMessage(t, client, cwc)
	info, err := DecodeGameServerInfo(infoBytes)
	if err != nil {
		t.Fatalf("decoding GameServerInfo: %v", err)
	}
	if info.AuthToken == 0 {
		t.Error("expected non-zero auth token")
	}
	if info.GameServerIP != "10.0.0.5" || info.GamePort != 50020 {
		t.Errorf("GameServerInfo endpoint = %+v, want {10.0.0.5 50020}", info)
	}

	entry, ok := tokens.Claim(info.AuthToken, time.Now())
	if !ok {
		t.Fatal("expected auth token to be claimable")
	}
	if entry.PlayerID != "player-42" {
		t.Errorf("PlayerID = %q, want player-42", entry.PlayerID)
	}
	if string(entry.GameKey) != string(fullKey) {
		t.Errorf("registered game key = %v, want %v", entry.GameKey, fullKey)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConnection did not close after the full handshake")
	}
}

func TestAwaitKeyExchangeRejectsWrongLength(t *testing.T) {
	keys, err := cipher.GenerateRSAKeyPair()
	if err != nil {
		t.Fatalf("generating RSA keypair: %v", err)
	}
	tokens := authtoken.NewRegistry(20 * time.Second)

	client, server := testutil.PipeConn(t)
	srv := NewServer(testConfig(), keys, tokens)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConnection(server)
	}()

	cwcKey := []byte("0123456789ABCDEF")
	header := protocol.MessageHeader{RequestIndex: 1, IsResponse: false}
	headerBytes := header.Encode()
	plain := append(append([]byte{}, headerBytes[:]...), cwcKey...)
	ciphertext, err := cipher.EncryptOAEP(keys.Public(), plain)
	if err != nil {
		t.Fatalf("RSA-OAEP encrypt: %v", err)
	}
	if err := protocol.WriteFrame(client, protocol.NoCipher, 0, ciphertext); err != nil {
		t.Fatalf("writing handshake frame: %v", err)
	}

	cwc, err := cipher.NewCWC(cwcKey)
	if err != nil {
		t.Fatalf("building CWC cipher: %v", err)
	}
	clientReadMessage(t, client, cwc)

	statusReq := GetServiceStatus{ID: 1, SteamID: "x", AppVersion: 1}
	statusBody, _ := statusReq.Marshal()
	clientWriteMessage(t, client, cwc, 2, false, statusBody)
	clientReadMessage(t, client, cwc)

	clientWriteMessage(t, client, cwc, 3, false, []byte{0x01, 0x02, 0x03})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConnection did not close on malformed key exchange")
	}
}
