package message

import (
	"testing"
	"time"

	"github.com/udisondev/frpg2go/internal/fragment"
	"github.com/udisondev/frpg2go/internal/rudp"
)

// textRecord is a trivial Record used only by tests.
type textRecord struct {
	Text string
}

func (r *textRecord) Marshal() ([]byte, error) { return []byte(r.Text), nil }
func (r *textRecord) Unmarshal(b []byte) error { r.Text = string(b); return nil }

const (
	opcodePing   = 0x0001 // REQUEST_RESPONSE
	opcodePush   = 0x0002 // PUSH_MESSAGE
	opcodeNotify = 0x0003 // MESSAGE (no reply expected)
)

func testTable() *Table {
	return NewTable(
		[]Entry{{
			Opcode:  opcodePing,
			New:     func() Record { return &textRecord{} },
			RespNew: func() Record { return &textRecord{} },
		}},
		[]Entry{{
			Opcode: opcodeNotify,
			New:    func() Record { return &textRecord{} },
		}},
		[]Entry{{
			Opcode: opcodePush,
			New:    func() Record { return &textRecord{} },
		}},
	)
}

// establishedServerStream builds a rudp.Stream already past the handshake,
// the same fixture rudp's own tests use, built here through the public
// API since message is a different package.
func establishedServerStream(t *testing.T) *rudp.Stream {
	t.Helper()
	s := rudp.NewStream(rudp.Config{})
	now := time.Now()
	syn := rudp.Packet{Header: rudp.Header{Local: 1, Opcode: rudp.OpSYN}}.Encode()
	if _, _, err := s.HandlePacket(now, syn); err != nil {
		t.Fatalf("handling SYN: %v", err)
	}
	ack := rudp.Packet{Header: rudp.Header{Remote: 1, Opcode: rudp.OpACK}}.Encode()
	if _, _, err := s.HandlePacket(now, ack); err != nil {
		t.Fatalf("handling client ACK: %v", err)
	}
	if s.State() != rudp.StateEstablished {
		t.Fatalf("setup failed: state = %v, want Established", s.State())
	}
	return s
}

// pumpAndDecode pumps rs and reassembles every resulting DAT/DAT_ACK
// packet's payload with a fresh Reassembler, returning the completed
// message bytes once fully assembled.
func pumpAndDecode(t *testing.T, rs *rudp.Stream) []byte {
	t.Helper()
	out, err := rs.Pump(time.Now(), time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("pumping: %v", err)
	}
	r := fragment.NewReassembler()
	var got []byte
	for _, pkt := range out {
		h, err := rudp.DecodeHeader(pkt)
		if err != nil {
			t.Fatalf("decoding rudp header: %v", err)
		}
		if h.Opcode != rudp.OpDAT && h.Opcode != rudp.OpDATACK {
			continue
		}
		body := pkt[rudpHeaderLen:]
		frame, done, err := r.Feed(body)
		if err != nil {
			t.Fatalf("reassembling: %v", err)
		}
		if done {
			got = frame
		}
	}
	return got
}

const rudpHeaderLen = 7 // constants.RUDPHeaderSize

func TestSendRequestTracksOutstandingOnlyForRequestResponse(t *testing.T) {
	st := NewStream(rudp.NewStream(rudp.Config{}), testTable(), 1024, 1<<20)

	idx, err := st.SendRequest(opcodePing, &textRecord{Text: "ping"})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, pending := st.outstanding[idx]; !pending {
		t.Error("expected a REQUEST_RESPONSE send to be tracked in outstanding")
	}

	st2 := NewStream(rudp.NewStream(rudp.Config{}), testTable(), 1024, 1<<20)
	idx2, err := st2.SendRequest(opcodeNotify, &textRecord{Text: "fyi"})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, pending := st2.outstanding[idx2]; pending {
		t.Error("expected a plain MESSAGE send not to be tracked in outstanding")
	}
}

func TestReplyRejectsNonRequestResponseOpcode(t *testing.T) {
	st := NewStream(rudp.NewStream(rudp.Config{}), testTable(), 1024, 1<<20)
	err := st.Reply(Envelope{Opcode: opcodePush}, &textRecord{Text: "nope"})
	if err == nil {
		t.Fatal("expected Reply on a PUSH_MESSAGE opcode to fail")
	}
}

func TestRequestDeliversAndReplyRoundTrips(t *testing.T) {
	rs := establishedServerStream(t)
	st := NewStream(rs, testTable(), 1024, 1<<20)

	// Build the request the way a peer's message.Stream would: header,
	// body, fragmented, then delivered to rs one RUDP packet at a time
	// (sequence 1 was already consumed by the SYN in the fixture).
	payload, _ := (&textRecord{Text: "ping"}).Marshal()
	hdr := header{Opcode: opcodePing, MsgIndex: 7}.encode()
	reqFramed := append(append([]byte{}, hdr[:]...), payload...)
	sender := fragment.NewSender(1024, 1<<20)
	packets, err := sender.Split(reqFramed)
	if err != nil {
		t.Fatalf("splitting: %v", err)
	}

	var env Envelope
	var body Record
	seq := uint16(2)
	now := time.Now()
	for _, p := range packets {
		pkt := rudp.Packet{Header: rudp.Header{Local: seq, Opcode: rudp.OpDAT}, Payload: p}.Encode()
		delivered, _, err := rs.HandlePacket(now, pkt)
		if err != nil {
			t.Fatalf("delivering request fragment: %v", err)
		}
		seq++
		for _, d := range delivered {
			e, b, ok, err := st.Feed(d)
			if err != nil {
				t.Fatalf("Feed: %v", err)
			}
			if ok {
				env, body = e, b
			}
		}
	}
	if body == nil {
		t.Fatal("request never completed")
	}
	if env.Opcode != opcodePing || env.MsgIndex != 7 {
		t.Errorf("envelope = %+v", env)
	}
	if got := body.(*textRecord).Text; got != "ping" {
		t.Errorf("request body = %q, want ping", got)
	}

	if env.AckHint != rs.RecvSeq() {
		t.Errorf("envelope ack hint = %d, want %d (the request's last delivered sequence)", env.AckHint, rs.RecvSeq())
	}

	if err := st.Reply(env, &textRecord{Text: "pong"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	out, err := rs.Pump(now, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("pumping reply: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("reply never pumped")
	}
	firstHeader, err := rudp.DecodeHeader(out[0])
	if err != nil {
		t.Fatalf("decoding reply's first packet header: %v", err)
	}
	if firstHeader.Opcode != rudp.OpDATACK {
		t.Errorf("reply's first fragment opcode = %s, want DAT_ACK", firstHeader.Opcode)
	}
	if firstHeader.Remote != env.AckHint {
		t.Errorf("reply's first fragment ack = %d, want %d (the request's ack hint)", firstHeader.Remote, env.AckHint)
	}

	r := fragment.NewReassembler()
	var framed []byte
	for _, pkt := range out {
		h, err := rudp.DecodeHeader(pkt)
		if err != nil {
			t.Fatalf("decoding rudp header: %v", err)
		}
		if h.Opcode != rudp.OpDAT && h.Opcode != rudp.OpDATACK {
			continue
		}
		body := pkt[rudpHeaderLen:]
		frame, done, err := r.Feed(body)
		if err != nil {
			t.Fatalf("reassembling: %v", err)
		}
		if done {
			framed = frame
		}
	}
	if framed == nil {
		t.Fatal("reply never reassembled")
	}
	replyHeader, err := decodeHeader(framed)
	if err != nil {
		t.Fatalf("decoding reply header: %v", err)
	}
	if !replyHeader.IsReply || replyHeader.Opcode != opcodePing || replyHeader.MsgIndex != 7 {
		t.Errorf("reply header = %+v", replyHeader)
	}
	replyBody := framed[headerSize+responseSubHeaderSize:]
	if string(replyBody) != "pong" {
		t.Errorf("reply body = %q, want pong", replyBody)
	}
}

func TestPushProducesDeliverableMessage(t *testing.T) {
	rs := establishedServerStream(t)
	st := NewStream(rs, testTable(), 1024, 1<<20)

	if err := st.Push(opcodePush, &textRecord{Text: "hi"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	framed := pumpAndDecode(t, rs)
	if framed == nil {
		t.Fatal("push never reassembled")
	}
	h, err := decodeHeader(framed)
	if err != nil {
		t.Fatalf("decoding push header: %v", err)
	}
	if h.IsReply {
		t.Error("push message should not carry the reply flag")
	}
	if h.Opcode != opcodePush {
		t.Errorf("opcode = %#04x, want %#04x", h.Opcode, opcodePush)
	}
	if got := string(framed[headerSize:]); got != "hi" {
		t.Errorf("push body = %q, want hi", got)
	}
}

func TestFeedRejectsUnexpectedReply(t *testing.T) {
	st := NewStream(rudp.NewStream(rudp.Config{}), testTable(), 1024, 1<<20)

	hdr := header{Opcode: opcodePing, MsgIndex: 999, IsReply: true}.encode()
	sub := (responseSubHeader{}).encode()
	framed := append(append([]byte{}, hdr[:]...), sub[:]...)
	framed = append(framed, []byte("bogus")...)

	if _, _, _, err := st.Feed(framed); err == nil {
		t.Fatal("expected an error feeding an unsolicited reply")
	}
}
