// Package fragment implements the fragmentation/compression layer above
// internal/rudp (spec.md §4.6): arbitrarily sized application payloads are
// deflated above a size threshold, split into bounded-size fragments, and
// reassembled on the receiving side using the counters the underlying RUDP
// stream's in-order delivery already guarantees won't interleave.
// Grounded on original_source's Frpg2ReliableUdpFragment*.{h,cpp}.
package fragment

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/udisondev/frpg2go/internal/constants"
)

// Header is the fixed 12-byte header in front of every fragment's bytes.
type Header struct {
	FragmentCounter     uint16
	Compressed          bool
	TotalPayloadLength  uint16
	FragmentIndex       uint8
	FragmentLength      uint16
}

// Encode writes h into its 12-byte wire form.
func (h Header) Encode() [constants.FragmentHeaderSize]byte {
	var buf [constants.FragmentHeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.FragmentCounter)
	if h.Compressed {
		buf[2] = 1
	}
	// buf[3:6] reserved
	binary.BigEndian.PutUint16(buf[6:8], h.TotalPayloadLength)
	// buf[8] reserved
	buf[9] = h.FragmentIndex
	binary.BigEndian.PutUint16(buf[10:12], h.FragmentLength)
	return buf
}

// DecodeHeader parses a 12-byte fragment header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < constants.FragmentHeaderSize {
		return Header{}, fmt.Errorf("fragment header too short: %d bytes", len(buf))
	}
	return Header{
		FragmentCounter:    binary.BigEndian.Uint16(buf[0:2]),
		Compressed:         buf[2] != 0,
		TotalPayloadLength: binary.BigEndian.Uint16(buf[6:8]),
		FragmentIndex:      buf[9],
		FragmentLength:     binary.BigEndian.Uint16(buf[10:12]),
	}, nil
}

// Sender is the state the message layer needs to hand off one logical
// payload for fragmentation: a monotonically increasing counter shared
// across every fragment of this message, per spec.md §4.6 step 2.
type Sender struct {
	maxFragmentLen int
	minCompress    int
	nextCounter    uint16
}

// NewSender builds a Sender with the configured fragment size and
// compression threshold.
func NewSender(maxFragmentLen, minCompressSize int) *Sender {
	return &Sender{maxFragmentLen: maxFragmentLen, minCompress: minCompressSize}
}

// Split deflates payload when it is at or above the compression threshold,
// then slices the (possibly compressed) bytes into one or more on-wire
// fragment packets, each ready to hand to rudp.Stream.Send as one RUDP
// packet. The caller is responsible for attaching an ack hint to only the
// first returned packet (spec.md §4.6 step 4): the underlying RUDP packet
// for fragment 0 acknowledges whatever request this message replies to.
func (s *Sender) Split(payload []byte) ([][]byte, error) {
	counter := s.nextCounter
	s.nextCounter++

	body := payload
	compressed := false
	originalSize := uint32(len(payload))

	if len(payload) >= s.minCompress {
		deflated, err := deflate(payload)
		if err != nil {
			return nil, fmt.Errorf("compressing fragment payload: %w", err)
		}
		body = deflated
		compressed = true
	}

	maxChunk := s.maxFragmentLen - constants.FragmentHeaderSize
	if compressed {
		maxChunk -= constants.FragmentOriginalSizeFieldSize
	}
	if maxChunk <= 0 {
		return nil, fmt.Errorf("fragment max length %d too small for headers", s.maxFragmentLen)
	}

	total := len(body)
	numFragments := (total + maxChunk - 1) / maxChunk
	if numFragments == 0 {
		numFragments = 1
	}

	packets := make([][]byte, 0, numFragments)
	for i := 0; i < numFragments; i++ {
		start := i * maxChunk
		end := start + maxChunk
		if end > total {
			end = total
		}
		chunk := body[start:end]

		h := Header{
			FragmentCounter:    counter,
			Compressed:         compressed,
			TotalPayloadLength: uint16(total),
			FragmentIndex:      uint8(i),
			FragmentLength:     uint16(len(chunk)),
		}
		enc := h.Encode()

		var out []byte
		if compressed && i == 0 {
			out = make([]byte, 0, len(enc)+constants.FragmentOriginalSizeFieldSize+len(chunk))
			out = append(out, enc[:]...)
			var sizeField [constants.FragmentOriginalSizeFieldSize]byte
			binary.BigEndian.PutUint32(sizeField[:], originalSize)
			out = append(out, sizeField[:]...)
			out = append(out, chunk...)
		} else {
			out = make([]byte, 0, len(enc)+len(chunk))
			out = append(out, enc[:]...)
			out = append(out, chunk...)
		}
		packets = append(packets, out)
	}

	return packets, nil
}

// Reassembler accumulates fragments for one RUDP stream, delivering a
// completed message once every fragment for its counter has arrived. The
// underlying RUDP layer guarantees strictly ordered, non-interleaved
// delivery per session, so a Reassembler only ever tracks one counter at
// a time (spec.md §4.6 invariant).
type Reassembler struct {
	active        bool
	counter       uint16
	compressed    bool
	total         int
	originalSize  uint32
	buf           []byte
}

// NewReassembler builds an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed processes one fragment packet (header + body, as produced by
// Sender.Split). It returns the reassembled, decompressed payload and
// true once every fragment for the in-progress counter has arrived.
func (r *Reassembler) Feed(packet []byte) ([]byte, bool, error) {
	h, err := DecodeHeader(packet)
	if err != nil {
		return nil, false, err
	}
	body := packet[constants.FragmentHeaderSize:]

	if h.FragmentIndex == 0 {
		originalSize := uint32(0)
		if h.Compressed {
			if len(body) < constants.FragmentOriginalSizeFieldSize {
				return nil, false, fmt.Errorf("fragment 0 missing original-size field")
			}
			originalSize = binary.BigEndian.Uint32(body[:constants.FragmentOriginalSizeFieldSize])
			body = body[constants.FragmentOriginalSizeFieldSize:]
		}

		r.active = true
		r.counter = h.FragmentCounter
		r.compressed = h.Compressed
		r.total = int(h.TotalPayloadLength)
		r.originalSize = originalSize
		r.buf = make([]byte, 0, r.total)
	} else if !r.active || h.FragmentCounter != r.counter {
		return nil, false, fmt.Errorf("fragment %d for unknown/mismatched counter %d", h.FragmentIndex, h.FragmentCounter)
	}

	r.buf = append(r.buf, body...)

	if len(r.buf) < r.total {
		return nil, false, nil
	}

	payload := r.buf
	r.active = false
	r.buf = nil

	if r.compressed {
		inflated, err := inflate(payload, int(r.originalSize))
		if err != nil {
			return nil, false, fmt.Errorf("decompressing fragment payload: %w", err)
		}
		payload = inflated
	}

	return payload, true, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte, originalSize int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out := make([]byte, 0, originalSize)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
