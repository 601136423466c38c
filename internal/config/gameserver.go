package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthService holds configuration for the Auth service (spec.md §4.3). Auth
// and Game share one process in this module (see DESIGN.md) so that the
// auth-token registration Auth completes can be handed to Game in-process
// with no RPC hop, so both live under GameServer below.
type AuthService struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	ClientTimeoutSeconds int `yaml:"client_timeout_seconds"`

	// GameHost/GamePort are embedded in the GameServerInfo handoff struct
	// returned at the end of the handshake.
	GameHost string `yaml:"game_host"`
	GamePort int    `yaml:"game_port"`

	Keys KeyMaterial `yaml:"keys"`

	// AuthTokenTTLSeconds bounds how long a registered token may sit
	// unclaimed by Game before it is swept (spec.md §3, §4.4).
	AuthTokenTTLSeconds int `yaml:"auth_token_ttl_seconds"`

	// MaxTicketSize bounds the identity ticket accepted in AwaitTicket.
	MaxTicketSize int `yaml:"max_ticket_size"`
}

// RUDPConfig controls the reliable-datagram layer (spec.md §4.5).
type RUDPConfig struct {
	MaxInFlight               int           `yaml:"max_in_flight"`
	RetransmitInterval        time.Duration `yaml:"retransmit_interval"`
	MinAckResendInterval      time.Duration `yaml:"min_ack_resend_interval"`
	CloseGraceTimeout         time.Duration `yaml:"close_grace_timeout"`
	HeartbeatInterval         time.Duration `yaml:"heartbeat_interval"`
}

// FragmentConfig controls the fragmentation/compression layer (spec.md §4.6).
type FragmentConfig struct {
	MaxFragmentLength int `yaml:"max_fragment_length"`
	MinCompressSize   int `yaml:"min_compress_size"`
}

// AreaPoolConfig sizes one title's area pool (spec.md §4.8, §6).
type AreaPoolConfig struct {
	MaxPerArea         int `yaml:"max_per_area"`
	PrimeCountPerArea  int `yaml:"prime_count_per_area"`
}

// GameService holds configuration for the Game UDP service (spec.md §4.4).
type GameService struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	// MaxSendQueueBytes is the outbound-saturation ceiling per session
	// (spec.md §7 "Send saturation").
	MaxSendQueueBytes int `yaml:"max_send_queue_bytes"`
}

// GameServer is the combined configuration for the process hosting both
// the Auth and Game services (cmd/gameserver).
type GameServer struct {
	Auth AuthService    `yaml:"auth"`
	Game GameService    `yaml:"game"`
	RUDP RUDPConfig     `yaml:"rudp"`
	Fragment FragmentConfig `yaml:"fragment"`
	AreaPool AreaPoolConfig `yaml:"area_pool"`
	Database DatabaseConfig `yaml:"database"`
	LogLevel string         `yaml:"log_level"`
}

// DefaultGameServer returns GameServer config with sensible defaults,
// mirroring the constants this module falls back to when a field is left
// at zero (internal/constants.Default*).
func DefaultGameServer() GameServer {
	return GameServer{
		Auth: AuthService{
			BindAddress:          "0.0.0.0",
			Port:                 50010,
			ClientTimeoutSeconds: 5,
			GameHost:             "127.0.0.1",
			GamePort:             50020,
			Keys: KeyMaterial{
				PrivateKeyPath: "config/keys/server_private.pem",
				PublicKeyPath:  "config/keys/server_public.pem",
			},
			AuthTokenTTLSeconds: 20,
			MaxTicketSize:       4096,
		},
		Game: GameService{
			BindAddress:        "0.0.0.0",
			Port:               50020,
			SessionIdleTimeout: 30 * time.Second,
			MaxSendQueueBytes:  512 * 1024,
		},
		RUDP: RUDPConfig{
			MaxInFlight:          10,
			RetransmitInterval:   500 * time.Millisecond,
			MinAckResendInterval: 100 * time.Millisecond,
			CloseGraceTimeout:    5 * time.Second,
			HeartbeatInterval:    10 * time.Second,
		},
		Fragment: FragmentConfig{
			MaxFragmentLength: 1024,
			MinCompressSize:   256,
		},
		AreaPool: AreaPoolConfig{
			MaxPerArea:        100,
			PrimeCountPerArea: 10,
		},
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "frpg2go",
			Password: "frpg2go",
			DBName:  "frpg2go",
			SSLMode: "disable",
		},
		LogLevel: "info",
	}
}

// LoadGameServer loads the Auth+Game process config from a YAML file. If
// the file doesn't exist, returns defaults.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()

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
