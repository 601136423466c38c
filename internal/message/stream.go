package message

import (
	"fmt"

	"github.com/udisondev/frpg2go/internal/fragment"
	"github.com/udisondev/frpg2go/internal/rudp"
)

// Envelope carries the decoded routing information for one inbound
// message: which opcode it was sent under, its message index (used to
// correlate a reply with the request that prompted it), and whether it is
// itself a reply to something this side sent.
type Envelope struct {
	Opcode   uint16
	MsgIndex uint32
	IsReply  bool

	// AckHint is the RUDP sequence this message's delivery acknowledged
	// (rudp.Stream.RecvSeq() at the moment Feed decoded it). Reply inherits
	// it so the reply's first fragment goes out as DAT_ACK instead of DAT
	// (spec.md §4.6 step 4, §4.7).
	AckHint uint16
}

// Stream is the request/reply layer for one session, sitting directly
// above one rudp.Stream: it marshals/unmarshals Records, assigns and
// tracks message indices, and drives internal/fragment to turn a message
// into one or more RUDP payloads (and back). Like rudp.Stream, it performs
// no I/O of its own — the session owns the socket and the cipher, and
// drives this Stream by feeding it decrypted bytes and collecting the
// byte slices it produces to encrypt and send.
type Stream struct {
	rs    *rudp.Stream
	table *Table

	sender      *fragment.Sender
	reassembler *fragment.Reassembler

	nextMsgIndex uint32

	// outstanding tracks message indices this side sent as a
	// REQUEST_RESPONSE request, awaiting the peer's reply, so Feed
	// knows which opcode's RespNew to decode an incoming IsReply message
	// against. Entries are removed once the matching reply arrives.
	outstanding map[uint32]uint16
}

// NewStream builds a message Stream above rs, using table to resolve
// opcodes to Record constructors and (maxFragmentLen, minCompressSize) for
// the fragmentation/compression layer (spec.md §4.6, §4.7).
func NewStream(rs *rudp.Stream, table *Table, maxFragmentLen, minCompressSize int) *Stream {
	return &Stream{
		rs:          rs,
		table:       table,
		sender:      fragment.NewSender(maxFragmentLen, minCompressSize),
		reassembler: fragment.NewReassembler(),
		outstanding: make(map[uint32]uint16),
	}
}

// encode serializes a header (and, for replies, the reserved response
// sub-header) in front of body's marshaled bytes, then hands the whole
// thing to the fragment layer and the underlying RUDP send queue. Only the
// first fragment carries ackHint (spec.md §4.6 step 4: "subsequent
// fragments carry no ack") so that fragment alone is promoted to DAT_ACK.
func (s *Stream) encode(h header, body Record, ackHint uint16) error {
	payload, err := body.Marshal()
	if err != nil {
		return fmt.Errorf("message: marshaling opcode %#04x: %w", h.Opcode, err)
	}

	hdr := h.encode()
	framed := make([]byte, 0, len(hdr)+responseSubHeaderSize+len(payload))
	framed = append(framed, hdr[:]...)
	if h.IsReply {
		sub := (responseSubHeader{}).encode()
		framed = append(framed, sub[:]...)
	}
	framed = append(framed, payload...)

	packets, err := s.sender.Split(framed)
	if err != nil {
		return fmt.Errorf("message: fragmenting opcode %#04x: %w", h.Opcode, err)
	}
	for i, p := range packets {
		hint := uint16(0)
		if i == 0 {
			hint = ackHint
		}
		s.rs.Send(p, hint)
	}
	return nil
}

// SendRequest sends body as a REQUEST_RESPONSE or MESSAGE opcode and
// returns the message index assigned to it. For a REQUEST_RESPONSE
// opcode, the index is recorded in outstanding so a later reply can be
// matched back to it.
func (s *Stream) SendRequest(opcode uint16, body Record) (uint32, error) {
	idx := s.nextMsgIndex
	s.nextMsgIndex++

	if err := s.encode(header{Opcode: opcode, MsgIndex: idx}, body, 0); err != nil {
		return 0, err
	}
	if s.table.expectsReply(opcode) {
		s.outstanding[idx] = opcode
	}
	return idx, nil
}

// Push sends a server-initiated PUSH_MESSAGE opcode unprompted by any
// inbound request (spec.md §4.7, §7): server-initiated sends inherit no
// ack hint. Push implements Responder.
func (s *Stream) Push(opcode uint16, body Record) error {
	idx := s.nextMsgIndex
	s.nextMsgIndex++
	return s.encode(header{Opcode: opcode, MsgIndex: idx}, body, 0)
}

// Reply answers the request recorded in env, echoing its opcode and
// message index with the reply flag set so the peer's Feed can pair it
// back to the request it sent. Reply is only meaningful for an Envelope
// whose opcode is registered REQUEST_RESPONSE; calling it for any other
// envelope is a caller error and returns one. Inherits env's ack hint
// (spec.md §4.7) so the reply's first fragment acknowledges the request.
func (s *Stream) Reply(env Envelope, resp Record) error {
	if !s.table.expectsReply(env.Opcode) {
		return fmt.Errorf("message: opcode %#04x is not REQUEST_RESPONSE, cannot Reply", env.Opcode)
	}
	return s.encode(header{Opcode: env.Opcode, MsgIndex: env.MsgIndex, IsReply: true}, resp, env.AckHint)
}

// Feed processes one delivered RUDP application payload (as returned by
// rudp.Stream.HandlePacket's delivered slice) through the fragment
// reassembler. It returns ok=false until every fragment of the in-flight
// message has arrived, at which point it decodes the message's header and
// body and returns the routed Envelope and Record.
func (s *Stream) Feed(packet []byte) (env Envelope, body Record, ok bool, err error) {
	framed, done, err := s.reassembler.Feed(packet)
	if err != nil {
		return Envelope{}, nil, false, fmt.Errorf("message: reassembling: %w", err)
	}
	if !done {
		return Envelope{}, nil, false, nil
	}

	h, err := decodeHeader(framed)
	if err != nil {
		return Envelope{}, nil, false, fmt.Errorf("message: decoding header: %w", err)
	}
	rest := framed[headerSize:]

	if h.IsReply {
		rest = rest[responseSubHeaderSize:]
		opcode, pending := s.outstanding[h.MsgIndex]
		if !pending {
			return Envelope{}, nil, false, fmt.Errorf("message: unexpected reply for message index %d", h.MsgIndex)
		}
		delete(s.outstanding, h.MsgIndex)
		record, ok := s.table.newResponse(opcode)
		if !ok {
			return Envelope{}, nil, false, fmt.Errorf("message: no response type registered for opcode %#04x", opcode)
		}
		if err := record.Unmarshal(rest); err != nil {
			return Envelope{}, nil, false, fmt.Errorf("message: unmarshaling reply for opcode %#04x: %w", opcode, err)
		}
		return Envelope{Opcode: opcode, MsgIndex: h.MsgIndex, IsReply: true}, record, true, nil
	}

	record, ok := s.table.newBody(h.Opcode)
	if !ok {
		return Envelope{}, nil, false, fmt.Errorf("message: unregistered opcode %#04x", h.Opcode)
	}
	if err := record.Unmarshal(rest); err != nil {
		return Envelope{}, nil, false, fmt.Errorf("message: unmarshaling opcode %#04x: %w", h.Opcode, err)
	}
	// AckHint is the recv-sequence this delivery just advanced to; a Reply
	// built from this Envelope carries it so its first fragment acks this
	// request instead of going out as a bare DAT (spec.md §4.5, §8 scenario 2).
	return Envelope{Opcode: h.Opcode, MsgIndex: h.MsgIndex, AckHint: s.rs.RecvSeq()}, record, true, nil
}
