package cipher

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadRSAKeyPair reads a PKCS#1-encoded RSA private key from a PEM file.
// Login and Auth load the same keypair from disk (rather than generating
// one per process) because a patched client is configured with exactly one
// public key, and Login/Auth run as separate processes in this module.
func LoadRSAKeyPair(path string) (*RSAKeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSA private key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA private key %s: %w", path, err)
	}
	priv.Precompute()

	return &RSAKeyPair{Private: priv}, nil
}

// SaveRSAKeyPair PEM-encodes kp's private key to privatePath and its public
// key to publicPath, creating parent-less files (callers are expected to
// have already created the containing directory).
func SaveRSAKeyPair(kp *RSAKeyPair, privatePath, publicPath string) error {
	privBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.Private),
	}
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(privBlock), 0o600); err != nil {
		return fmt.Errorf("writing RSA private key %s: %w", privatePath, err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(kp.Public())
	if err != nil {
		return fmt.Errorf("marshaling RSA public key: %w", err)
	}
	pubBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}
	if err := os.WriteFile(publicPath, pem.EncodeToMemory(pubBlock), 0o644); err != nil {
		return fmt.Errorf("writing RSA public key %s: %w", publicPath, err)
	}

	return nil
}

// LoadOrGenerateRSAKeyPair loads the keypair at privatePath, generating and
// persisting a fresh one if no file exists yet. Used by service startup so
// a first run bootstraps key material instead of failing.
func LoadOrGenerateRSAKeyPair(privatePath, publicPath string) (*RSAKeyPair, error) {
	if _, err := os.Stat(privatePath); err == nil {
		return LoadRSAKeyPair(privatePath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking RSA private key %s: %w", privatePath, err)
	}

	kp, err := GenerateRSAKeyPair()
	if err != nil {
		return nil, err
	}
	if err := SaveRSAKeyPair(kp, privatePath, publicPath); err != nil {
		return nil, err
	}
	return kp, nil
}
