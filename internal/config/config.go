// Package config loads the YAML configuration surface spec.md §6 defines:
// listening endpoints, RSA key material, session/transport timeouts and
// per-pool sizing. Every field is read once at startup; changes require a
// restart, matching the teacher's internal/config package (LoadLoginServer,
// LoadGameServer) generalized from L2-specific fields to this module's
// transport/session domain.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection parameters for the
// PlayerStore persistence interface (internal/persist).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// KeyMaterial locates the server's RSA handshake keypair on disk (spec.md
// §6: "server_public_key, server_private_key: RSA keypair paths"). Both
// Login and Auth must sign/decrypt with the same keypair, since a patched
// client is configured with one public key, so the pair lives on disk
// rather than being generated fresh per process.
type KeyMaterial struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`
}

// LoginServer holds all configuration for the Login service (spec.md §4.2).
type LoginServer struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// ClientTimeout bounds how long a connection may sit idle before its
	// first (and only) message arrives.
	ClientTimeoutSeconds int `yaml:"client_timeout_seconds"`

	// AuthHost/AuthPort are the Auth service's public endpoint, handed to
	// the client in the QueryLoginServerInfo reply.
	AuthHost string `yaml:"auth_host"`
	AuthPort int    `yaml:"auth_port"`

	Keys KeyMaterial `yaml:"keys"`

	LogLevel string `yaml:"log_level"`
}

// DefaultLoginServer returns LoginServer config with sensible defaults.
func DefaultLoginServer() LoginServer {
	return LoginServer{
		BindAddress:           "0.0.0.0",
		Port:                  50000,
		ClientTimeoutSeconds:  5,
		AuthHost:              "127.0.0.1",
		AuthPort:              50010,
		Keys: KeyMaterial{
			PrivateKeyPath: "config/keys/server_private.pem",
			PublicKeyPath:  "config/keys/server_public.pem",
		},
		LogLevel: "info",
	}
}

// LoadLoginServer loads Login service config from a YAML file. If the file
// doesn't exist, returns defaults.
func LoadLoginServer(path string) (LoginServer, error) {
	cfg := DefaultLoginServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
