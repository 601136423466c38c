package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/frpg2go/internal/constants"
)

// MessageHeader is the 12-byte header inside a Login/Auth packet payload.
// RequestIndex is little-endian on the wire; every other multi-byte field
// in this stack is big-endian. This is a protocol quirk, not a mistake.
type MessageHeader struct {
	RequestIndex uint32
	IsResponse   bool // Reserved field == 0 means a 16-byte response sub-header follows
}

// ResponseSubHeader follows MessageHeader when IsResponse is true.
type ResponseSubHeader struct {
	Raw [constants.ResponseSubHeaderSize]byte
}

// Encode writes h into a 12-byte header: header_size:u32=12, reserved:u32,
// request_index:u32 little-endian.
func (h MessageHeader) Encode() [constants.MessageHeaderSize]byte {
	var buf [constants.MessageHeaderSize]byte
	binary.BigEndian.PutUint32(buf[0:4], constants.MessageHeaderSizeField)
	if !h.IsResponse {
		binary.BigEndian.PutUint32(buf[4:8], 1) // any non-zero reserved value marks a non-response message
	}
	binary.LittleEndian.PutUint32(buf[8:12], h.RequestIndex)
	return buf
}

// DecodeMessageHeader parses the 12-byte message header from buf.
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < constants.MessageHeaderSize {
		return MessageHeader{}, fmt.Errorf("message header too short: %d bytes", len(buf))
	}

	headerSize := binary.BigEndian.Uint32(buf[0:4])
	if headerSize != constants.MessageHeaderSizeField {
		return MessageHeader{}, fmt.Errorf("unexpected message header size field: %d", headerSize)
	}

	reserved := binary.BigEndian.Uint32(buf[4:8])
	requestIndex := binary.LittleEndian.Uint32(buf[8:12])

	return MessageHeader{
		RequestIndex: requestIndex,
		IsResponse:   reserved == 0,
	}, nil
}
