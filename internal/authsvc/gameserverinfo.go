package authsvc

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/frpg2go/internal/constants"
)

// gamePortOffset is the offset of game_port inside the 184-byte struct:
// auth_token(8) + game_server_ip(16) + stack_reserved(112).
const gamePortOffset = 8 + constants.GameServerIPFieldSize + constants.GameServerInfoStackReservedSize

// GameServerInfo is the Auth->Game handoff struct handed to the client as
// the AwaitTicket reply (spec.md §4.3, §6 "Auth→Game handoff struct"): the
// auth token Game will expect on the first RUDP SYN, and the Game
// service's UDP endpoint. stack_reserved is uninitialized memory in the
// original implementation (spec.md §9 open question) and is kept
// zero-filled here for determinism; the trailing padding and reserved u32
// fields are likewise zero.
type GameServerInfo struct {
	AuthToken    uint64
	GameServerIP string // dotted-decimal IPv4, NUL-padded/truncated to 16 bytes on the wire
	GamePort     uint16
}

// Encode writes g into the fixed 184-byte big-endian struct.
func (g GameServerInfo) Encode() [constants.GameServerInfoSize]byte {
	var buf [constants.GameServerInfoSize]byte
	binary.BigEndian.PutUint64(buf[0:8], g.AuthToken)
	copy(buf[8:8+constants.GameServerIPFieldSize], g.GameServerIP)
	binary.BigEndian.PutUint16(buf[gamePortOffset:gamePortOffset+2], g.GamePort)
	return buf
}

// DecodeGameServerInfo parses the 184-byte struct, for test harnesses
// playing the client role.
func DecodeGameServerInfo(b []byte) (GameServerInfo, error) {
	if len(b) < constants.GameServerInfoSize {
		return GameServerInfo{}, fmt.Errorf("authsvc: GameServerInfo too short: %d bytes", len(b))
	}

	var g GameServerInfo
	g.AuthToken = binary.BigEndian.Uint64(b[0:8])

	ipField := b[8 : 8+constants.GameServerIPFieldSize]
	end := len(ipField)
	for i, c := range ipField {
		if c == 0 {
			end = i
			break
		}
	}
	g.GameServerIP = string(ipField[:end])

	g.GamePort = binary.BigEndian.Uint16(b[gamePortOffset : gamePortOffset+2])
	return g, nil
}
