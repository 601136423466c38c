package cipher

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/udisondev/frpg2go/internal/constants"
)

// CWCUDPClient encrypts datagrams traveling client->server on the Game
// UDP channel. Unlike the TCP cipher, every client->server datagram
// carries its auth token and a packet-type byte in the clear so the
// server can demultiplex before decrypting, and both are folded into the
// AEAD's associated data so a tampered token or type byte fails the tag
// check rather than silently misrouting the packet.
type CWCUDPClient struct {
	aead  cipher.AEAD
	token uint64
}

// NewCWCUDPClient builds a client->server UDP cipher bound to a specific
// auth token (assigned by the Auth service and presented to Game).
func NewCWCUDPClient(key []byte, authToken uint64) (*CWCUDPClient, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &CWCUDPClient{aead: aead, token: authToken}, nil
}

// clientAAD builds the additional authenticated data for a client UDP
// frame: IV || AuthToken || PacketType.
func clientAAD(iv []byte, token uint64, packetType byte) []byte {
	aad := make([]byte, 0, constants.CWCIVSize+constants.CWCUDPAuthTokenSize+constants.CWCUDPPacketTypeSize)
	aad = append(aad, iv...)
	tokenBytes := make([]byte, constants.CWCUDPAuthTokenSize)
	binary.BigEndian.PutUint64(tokenBytes, token)
	aad = append(aad, tokenBytes...)
	aad = append(aad, packetType)
	return aad
}

// Encrypt returns AuthToken(8) || IV(11) || Tag(16) || PacketType(1) || ciphertext.
func (c *CWCUDPClient) Encrypt(plaintext []byte, packetType byte) ([]byte, error) {
	iv := make([]byte, constants.CWCIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating client UDP IV: %w", err)
	}

	aad := clientAAD(iv, c.token, packetType)
	sealed := c.aead.Seal(nil, iv, plaintext, aad)
	tag := sealed[len(sealed)-constants.CWCTagSize:]
	ciphertext := sealed[:len(sealed)-constants.CWCTagSize]

	out := make([]byte, 0, constants.CWCUDPAuthTokenSize+constants.CWCIVSize+constants.CWCTagSize+constants.CWCUDPPacketTypeSize+len(ciphertext))
	tokenBytes := make([]byte, constants.CWCUDPAuthTokenSize)
	binary.BigEndian.PutUint64(tokenBytes, c.token)
	out = append(out, tokenBytes...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, packetType)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptClientUDPFrame decrypts a client->server frame, returning the auth
// token, packet type and plaintext. Called on the server side, where the key
// is looked up only after the token field is read off the wire (it arrives
// before decryption can happen).
func DecryptClientUDPFrame(key []byte, frame []byte) (token uint64, packetType byte, plaintext []byte, err error) {
	const headerSize = constants.CWCUDPAuthTokenSize + constants.CWCIVSize + constants.CWCTagSize + constants.CWCUDPPacketTypeSize
	if len(frame) < headerSize {
		return 0, 0, nil, fmt.Errorf("client UDP frame too short: %d bytes", len(frame))
	}

	token = binary.BigEndian.Uint64(frame[:constants.CWCUDPAuthTokenSize])
	iv := frame[constants.CWCUDPAuthTokenSize : constants.CWCUDPAuthTokenSize+constants.CWCIVSize]
	tag := frame[constants.CWCUDPAuthTokenSize+constants.CWCIVSize : headerSize-constants.CWCUDPPacketTypeSize]
	packetType = frame[headerSize-constants.CWCUDPPacketTypeSize]
	ciphertext := frame[headerSize:]

	aead, err := newGCM(key)
	if err != nil {
		return 0, 0, nil, err
	}

	aad := clientAAD(iv, token, packetType)
	sealed := make([]byte, 0, len(ciphertext)+constants.CWCTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("client UDP authentication failed: %w", err)
	}
	return token, packetType, plain, nil
}

// CWCUDPServer encrypts datagrams traveling server->client on the Game UDP
// channel. The client already knows which session a reply belongs to from
// the socket it arrived on, so there is no token or packet-type prefix:
// the frame is just IV || Tag || ciphertext, AAD bound to the IV alone.
type CWCUDPServer struct {
	aead cipher.AEAD
}

// NewCWCUDPServer builds a server->client UDP cipher for one session's key.
func NewCWCUDPServer(key []byte) (*CWCUDPServer, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &CWCUDPServer{aead: aead}, nil
}

// Encrypt returns IV(11) || Tag(16) || ciphertext.
func (c *CWCUDPServer) Encrypt(plaintext []byte) ([]byte, error) {
	iv := make([]byte, constants.CWCIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating server UDP IV: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, plaintext, iv)
	tag := sealed[len(sealed)-constants.CWCTagSize:]
	ciphertext := sealed[:len(sealed)-constants.CWCTagSize]

	out := make([]byte, 0, constants.CWCIVSize+constants.CWCTagSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt reverses Encrypt.
func (c *CWCUDPServer) Decrypt(frame []byte) ([]byte, error) {
	const headerSize = constants.CWCIVSize + constants.CWCTagSize
	if len(frame) < headerSize {
		return nil, fmt.Errorf("server UDP frame too short: %d bytes", len(frame))
	}

	iv := frame[:constants.CWCIVSize]
	tag := frame[constants.CWCIVSize:headerSize]
	ciphertext := frame[headerSize:]

	sealed := make([]byte, 0, len(ciphertext)+constants.CWCTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, iv, sealed, iv)
	if err != nil {
		return nil, fmt.Errorf("server UDP authentication failed: %w", err)
	}
	return plain, nil
}
