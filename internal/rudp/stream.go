package rudp

import (
	"fmt"
	"time"

	"github.com/udisondev/frpg2go/internal/constants"
)

// queuedSend is an application packet waiting in Stream.sendQueue: handed
// to rudp.Send but not yet assigned a sequence number or written to the
// wire. Kept as a list separate from retransmitBuffer per design note:
// a packet is either queued-but-not-sent or sent-awaiting-ack, never both.
type queuedSend struct {
	Payload []byte
	AckHint uint16
	Opcode  Opcode
}

// outboundEntry is a sent sequenced packet awaiting acknowledgement.
type outboundEntry struct {
	Header  Header
	Payload []byte
	SentAt  time.Time
}

// Stream is the server-role connection state for one RUDP session, exactly
// the fields enumerated in the data model: send/recv sequence counters,
// out-of-order receive buffer, send queue, retransmit buffer, and the
// lifecycle state machine.
type Stream struct {
	state State

	sendSeq       uint16 // next sequence to assign
	sendSeqAcked  uint16 // highest sequence the peer has acknowledged
	recvSeq       uint16 // highest in-order sequence delivered upward
	recvSeqAcked  uint16 // highest sequence we have acknowledged to peer
	pendingRecv   map[uint16][]byte
	sendQueue     []queuedSend
	retransmitBuffer []outboundEntry

	retransmitting bool
	retransmitHead uint16

	lastRecvAt          time.Time
	lastAckSentAt        time.Time
	lastHeartbeatSentAt time.Time
	closeInitiatedAt    time.Time

	outbox [][]byte

	// maxInFlight, retransmitInterval, minAckResendInterval and
	// closeGraceTimeout are the per-session tunables of spec.md §6's
	// rudp config block (config.RUDPConfig), defaulted to the
	// internal/constants values a zero-valued Stream would otherwise fall
	// back to.
	maxInFlight          int
	retransmitInterval   time.Duration
	minAckResendInterval time.Duration
	closeGraceTimeout    time.Duration
}

// NewStream constructs a Stream in the Listening state, ready to accept a
// SYN. A zero value for any tunable falls back to its internal/constants
// default, so existing callers that only care about the handshake and data
// path (tests, benchmarks) can pass the zero Config.
func NewStream(cfg Config) *Stream {
	s := &Stream{
		state:       StateListening,
		sendSeq:     1,
		pendingRecv: make(map[uint16][]byte),

		maxInFlight:          cfg.MaxInFlight,
		retransmitInterval:   cfg.RetransmitInterval,
		minAckResendInterval: cfg.MinAckResendInterval,
		closeGraceTimeout:    cfg.CloseGraceTimeout,
	}
	if s.maxInFlight == 0 {
		s.maxInFlight = constants.MaxInFlight
	}
	if s.retransmitInterval == 0 {
		s.retransmitInterval = constants.RetransmitInterval
	}
	if s.minAckResendInterval == 0 {
		s.minAckResendInterval = constants.MinAckResendInterval
	}
	if s.closeGraceTimeout == 0 {
		s.closeGraceTimeout = constants.CloseGraceTimeout
	}
	return s
}

// Config carries the RUDP tunables spec.md §6 exposes per session
// (config.RUDPConfig's shape, duplicated here rather than imported so the
// transport-level rudp package doesn't depend on internal/config).
type Config struct {
	MaxInFlight          int
	RetransmitInterval   time.Duration
	MinAckResendInterval time.Duration
	CloseGraceTimeout    time.Duration
}

// State reports the current connection lifecycle state.
func (s *Stream) State() State { return s.state }

// SendSeqAcked exposes the peer's highest acknowledged sequence, for tests
// and diagnostics.
func (s *Stream) SendSeqAcked() uint16 { return s.sendSeqAcked }

// RecvSeq exposes the highest in-order sequence delivered upward.
func (s *Stream) RecvSeq() uint16 { return s.recvSeq }

// Send enqueues an application payload for sequenced delivery (DAT, or
// DAT_ACK when ackHint is non-zero because this reply also acknowledges an
// inbound request). The fragment layer calls this once per fragment.
func (s *Stream) Send(payload []byte, ackHint uint16) {
	opcode := OpDAT
	if ackHint != 0 {
		opcode = OpDATACK
	}
	s.sendQueue = append(s.sendQueue, queuedSend{Payload: payload, AckHint: ackHint, Opcode: opcode})
}

// Close initiates a local graceful shutdown: queues a sequenced FIN, which
// the next Pump sends, and moves to Closing. Pump finishes the transition
// to Closed once the send queue drains or the close grace timeout elapses.
func (s *Stream) Close(now time.Time) {
	if s.state == StateClosing || s.state == StateClosed {
		return
	}
	s.sendQueue = append(s.sendQueue, queuedSend{Opcode: OpFIN})
	s.state = StateClosing
	s.closeInitiatedAt = now
}

// HandlePacket processes one decrypted RUDP packet (header + payload
// already stripped of UDP ciphering) and returns application payloads now
// ready for upward delivery, in order, plus any control/ack bytes that
// must be written back to the peer immediately.
func (s *Stream) HandlePacket(now time.Time, raw []byte) (delivered [][]byte, outbound [][]byte, err error) {
	s.outbox = nil

	if s.state == StateClosed {
		return nil, nil, fmt.Errorf("rudp: packet received on closed stream")
	}

	header, err := DecodeHeader(raw)
	if err != nil {
		s.state = StateClosed
		return nil, nil, fmt.Errorf("rudp: decoding header: %w", err)
	}
	payload := raw[constants.RUDPHeaderSize:]

	s.lastRecvAt = now
	s.processAck(header.Remote)

	switch header.Opcode {
	case OpSYN:
		if s.state == StateListening {
			s.state = StateSynReceived
			s.recvSeq = header.Local
			s.recvSeqAcked = header.Local
			s.sendSequenced(now, OpSYNACK, header.Local, constants.SYNACKPayload[:])
			s.sendImmediate(OpACK, header.Local, nil)
		}

	case OpACK:
		if s.state == StateSynReceived {
			s.state = StateEstablished
		}

	case OpRST:
		s.reset()

	case OpHBT:
		s.sendImmediate(OpHBT, 0, nil)

	case OpFIN:
		s.sendSequenced(now, OpFINACK, header.Local, nil)
		s.state = StateClosing
		s.closeInitiatedAt = now

	case OpDAT, OpDATACK:
		delivered = s.receiveSequenced(now, header, payload)

	case OpRACK, OpPTDATFRAG, OpPTDATFRAGACK:
		// No known server-side behavior in the reference implementation;
		// accepted and otherwise ignored.

	default:
		s.state = StateClosed
		return nil, nil, fmt.Errorf("rudp: unknown opcode %#02x", header.Opcode)
	}

	return delivered, s.outbox, nil
}

// Pump advances retransmission and heartbeat timers and drains the send
// queue onto the wire, bounded by the in-flight window. Returns encoded
// packets ready to hand to the UDP cipher layer. Returns an error when the
// session has gone idle past idleTimeout, at which point the caller
// destroys the session.
func (s *Stream) Pump(now time.Time, heartbeatInterval, idleTimeout time.Duration) (outbound [][]byte, err error) {
	s.outbox = nil

	if s.state == StateClosed {
		return nil, nil
	}

	if !s.lastRecvAt.IsZero() && now.Sub(s.lastRecvAt) > idleTimeout {
		s.state = StateClosed
		return nil, fmt.Errorf("rudp: session idle timeout")
	}

	if !s.lastRecvAt.IsZero() && now.Sub(s.lastRecvAt) > heartbeatInterval &&
		now.Sub(s.lastHeartbeatSentAt) > heartbeatInterval {
		s.sendImmediate(OpHBT, 0, nil)
		s.lastHeartbeatSentAt = now
	}

	if len(s.retransmitBuffer) > 0 && !s.retransmitting {
		oldest := &s.retransmitBuffer[0]
		if now.Sub(oldest.SentAt) >= s.retransmitInterval {
			s.outbox = append(s.outbox, Packet{Header: oldest.Header, Payload: oldest.Payload}.Encode())
			oldest.SentAt = now
			s.retransmitting = true
			s.retransmitHead = oldest.Header.Local
		}
	}

	for len(s.sendQueue) > 0 && len(s.retransmitBuffer) < s.maxInFlight && !s.retransmitting {
		q := s.sendQueue[0]
		s.sendQueue = s.sendQueue[1:]

		local := s.nextSendSeq()
		h := Header{Local: local, Remote: q.AckHint, Opcode: q.Opcode}
		s.retransmitBuffer = append(s.retransmitBuffer, outboundEntry{Header: h, Payload: q.Payload, SentAt: now})
		s.outbox = append(s.outbox, Packet{Header: h, Payload: q.Payload}.Encode())
	}

	if s.state == StateClosing {
		drained := len(s.sendQueue) == 0 && len(s.retransmitBuffer) == 0
		if drained || now.Sub(s.closeInitiatedAt) >= s.closeGraceTimeout {
			s.state = StateClosed
		}
	}

	return s.outbox, nil
}

// receiveSequenced implements in-order delivery and duplicate handling for
// DAT/DAT_ACK packets: out-of-order arrivals sit in pendingRecv until the
// gap closes, duplicates at or below recvSeq are dropped (with a fresh ACK if
// our last one may have been lost), and contiguous packets starting at
// recvSeq+1 are delivered upward and bump recvSeq.
func (s *Stream) receiveSequenced(now time.Time, header Header, payload []byte) [][]byte {
	if seqLessEq(header.Local, s.recvSeq) {
		if now.Sub(s.lastAckSentAt) >= s.minAckResendInterval {
			s.sendImmediate(OpACK, s.recvSeqAcked, nil)
			s.lastAckSentAt = now
		}
		return nil
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.pendingRecv[header.Local] = stored

	var delivered [][]byte
	for {
		next := seqNext(s.recvSeq)
		p, ok := s.pendingRecv[next]
		if !ok {
			break
		}
		delete(s.pendingRecv, next)
		s.recvSeq = next
		delivered = append(delivered, p)
	}

	s.recvSeqAcked = s.recvSeq
	s.sendImmediate(OpACK, s.recvSeqAcked, nil)
	s.lastAckSentAt = now

	return delivered
}

// processAck folds a received Remote field into sendSeqAcked, prunes
// acknowledged entries out of the retransmit buffer, and clears an
// in-progress retransmission once its head sequence is acknowledged.
func (s *Stream) processAck(remote uint16) {
	if remote == 0 {
		return
	}
	if seqGreater(remote, s.sendSeqAcked) {
		s.sendSeqAcked = remote
	}

	kept := s.retransmitBuffer[:0]
	for _, e := range s.retransmitBuffer {
		if !seqLessEq(e.Header.Local, s.sendSeqAcked) {
			kept = append(kept, e)
		}
	}
	s.retransmitBuffer = kept

	if s.retransmitting && seqLessEq(s.retransmitHead, s.sendSeqAcked) {
		s.retransmitting = false
	}
}

func (s *Stream) sendImmediate(opcode Opcode, remote uint16, payload []byte) {
	h := Header{Local: 0, Remote: remote, Opcode: opcode}
	s.outbox = append(s.outbox, Packet{Header: h, Payload: payload}.Encode())
}

func (s *Stream) sendSequenced(now time.Time, opcode Opcode, remote uint16, payload []byte) {
	local := s.nextSendSeq()
	h := Header{Local: local, Remote: remote, Opcode: opcode}
	s.retransmitBuffer = append(s.retransmitBuffer, outboundEntry{Header: h, Payload: payload, SentAt: now})
	s.outbox = append(s.outbox, Packet{Header: h, Payload: payload}.Encode())
}

func (s *Stream) nextSendSeq() uint16 {
	local := s.sendSeq
	s.sendSeq = seqNext(s.sendSeq)
	return local
}

func (s *Stream) reset() {
	*s = Stream{
		state:       StateListening,
		sendSeq:     1,
		pendingRecv: make(map[uint16][]byte),

		maxInFlight:          s.maxInFlight,
		retransmitInterval:   s.retransmitInterval,
		minAckResendInterval: s.minAckResendInterval,
		closeGraceTimeout:    s.closeGraceTimeout,
	}
}

// seqNext returns the next 12-bit sequence after a, skipping 0 (reserved
// for "no sequence").
func seqNext(a uint16) uint16 {
	n := (a + 1) % constants.MaxSequence
	if n == 0 {
		n = 1
	}
	return n
}

// seqDiff returns a-b as a signed distance in a 12-bit sequence space,
// handling wraparound the standard way: differences are taken modulo the
// space and folded into (-space/2, space/2].
func seqDiff(a, b uint16) int32 {
	d := (int32(a) - int32(b)) % constants.MaxSequence
	if d > constants.MaxSequence/2 {
		d -= constants.MaxSequence
	}
	if d < -constants.MaxSequence/2 {
		d += constants.MaxSequence
	}
	return d
}

func seqGreater(a, b uint16) bool { return seqDiff(a, b) > 0 }
func seqLessEq(a, b uint16) bool  { return seqDiff(a, b) <= 0 }

// Packet is a decoded RUDP packet: header plus payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// Encode serializes p into its wire form (header immediately followed by payload).
func (p Packet) Encode() []byte {
	h := p.Header.Encode()
	out := make([]byte, 0, len(h)+len(p.Payload))
	out = append(out, h[:]...)
	out = append(out, p.Payload...)
	return out
}
