// Package cipher implements the three cipher families the handshake and
// transport layers use: RSA (OAEP + X9.31) for the first message on the
// Login/Auth TCP channels, and AES-CWC-family AEADs for everything after.
package cipher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/udisondev/frpg2go/internal/constants"
)

// RSAKeyPair holds the server's handshake keypair. Distributed to patched
// clients as configuration (the public half); the private half never
// leaves the server.
type RSAKeyPair struct {
	Private *rsa.PrivateKey
}

// GenerateRSAKeyPair generates a fresh 2048-bit RSA keypair with exponent
// 65537, pre-computing CRT values for faster private-key operations.
func GenerateRSAKeyPair() (*RSAKeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, constants.RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	priv.Precompute()
	return &RSAKeyPair{Private: priv}, nil
}

// Public returns the keypair's public half, distributed to clients.
func (kp *RSAKeyPair) Public() *rsa.PublicKey {
	return &kp.Private.PublicKey
}

// DecryptOAEP decrypts a client-encrypted RSA-OAEP payload with the server's
// private key. Used once, for the client's first Login/Auth message.
func (kp *RSAKeyPair) DecryptOAEP(ciphertext []byte) ([]byte, error) {
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, kp.Private, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA-OAEP decrypt: %w", err)
	}
	return plain, nil
}

// EncryptOAEP encrypts plaintext for the holder of priv, using their public key.
// Exposed for test harnesses that play the client role.
func EncryptOAEP(pub *rsa.PublicKey, plain []byte) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plain, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA-OAEP encrypt: %w", err)
	}
	return ciphertext, nil
}

// SignX931 signs digest with the server's private key using X9.31-style
// padding, then a raw RSA private-key exponentiation. X9.31 has no stdlib
// or ecosystem implementation, so the padding is applied by hand and the
// modular exponentiation done directly via math/big, the same way the
// teacher's RSA code manipulates raw modulus bytes when the wire format
// doesn't match a stdlib padding scheme.
func (kp *RSAKeyPair) SignX931(message []byte) ([]byte, error) {
	keyBytes := (kp.Private.N.BitLen() + 7) / 8
	padded, err := x931Pad(message, keyBytes)
	if err != nil {
		return nil, err
	}

	m := new(big.Int).SetBytes(padded)
	if m.Cmp(kp.Private.N) >= 0 {
		return nil, fmt.Errorf("X9.31 padded message too large for modulus")
	}

	s := new(big.Int).Exp(m, kp.Private.D, kp.Private.N)
	return s.FillBytes(make([]byte, keyBytes)), nil
}

// VerifyX931 verifies a SignX931 signature against the signer's public key.
func VerifyX931(pub *rsa.PublicKey, message, signature []byte) (bool, error) {
	keyBytes := (pub.N.BitLen() + 7) / 8
	if len(signature) != keyBytes {
		return false, fmt.Errorf("signature length %d does not match modulus size %d", len(signature), keyBytes)
	}

	s := new(big.Int).SetBytes(signature)
	e := big.NewInt(int64(pub.E))
	m := new(big.Int).Exp(s, e, pub.N)

	padded, err := x931Pad(message, keyBytes)
	if err != nil {
		return false, err
	}

	return m.Cmp(new(big.Int).SetBytes(padded)) == 0, nil
}

// x931Pad lays message out as: 0x6B | 0xBB...0xBB | message | 0x33,
// padded to exactly keyBytes. This mirrors the ANSI X9.31 rDSA scheme 1
// trailer/header convention (header nibble 6, trailer 0x33 = "no hash ID").
func x931Pad(message []byte, keyBytes int) ([]byte, error) {
	const overhead = 2 // leading 0x6B + trailing 0x33
	if len(message) > keyBytes-overhead {
		return nil, fmt.Errorf("message too long for X9.31 padding: %d bytes, key allows %d", len(message), keyBytes-overhead)
	}

	padded := make([]byte, keyBytes)
	padded[0] = 0x6B
	padded[keyBytes-1] = 0x33
	for i := 1; i < keyBytes-1-len(message); i++ {
		padded[i] = 0xBB
	}
	copy(padded[keyBytes-1-len(message):keyBytes-1], message)
	return padded, nil
}
