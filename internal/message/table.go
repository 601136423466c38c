package message

import "fmt"

// Record is a wire-serializable message body. Titles implement it for every
// request, response and push payload they register (spec.md §4.7, §7).
type Record interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// kind classifies an opcode the way original_source's per-title opcode
// tables do: a request that expects exactly one reply, a fire-and-forget
// message, or a server-initiated push (spec.md §4.7, §7 REQUEST_RESPONSE /
// MESSAGE / PUSH_MESSAGE).
type kind int

const (
	kindRequestResponse kind = iota
	kindMessage
	kindPushMessage
)

// Entry registers one opcode's shape with a Table. New constructs a zero
// Record to unmarshal an incoming payload into; for REQUEST_RESPONSE
// entries, RespNew constructs the zero Record an incoming reply to a
// request this side sent is unmarshaled into.
type Entry struct {
	Opcode  uint16
	New     func() Record
	RespNew func() Record
}

// Table is a title's compile-time opcode registry, built once at startup
// and read-only afterward — the Go analogue of original_source's macro-
// generated per-title opcode tables (spec.md §7).
type Table struct {
	reqResp map[uint16]Entry
	message map[uint16]Entry
	push    map[uint16]Entry
}

// NewTable builds a Table from three opcode lists. Opcodes must be unique
// within their own list; NewTable panics on a duplicate, since a colliding
// opcode table is a title programming error, not a runtime condition.
func NewTable(requestResponses, messages, pushMessages []Entry) *Table {
	t := &Table{
		reqResp: make(map[uint16]Entry, len(requestResponses)),
		message: make(map[uint16]Entry, len(messages)),
		push:    make(map[uint16]Entry, len(pushMessages)),
	}
	for _, e := range requestResponses {
		if _, dup := t.reqResp[e.Opcode]; dup {
			panic(fmt.Sprintf("message: duplicate request/response opcode %#04x", e.Opcode))
		}
		if e.RespNew == nil {
			panic(fmt.Sprintf("message: request/response opcode %#04x missing RespNew", e.Opcode))
		}
		t.reqResp[e.Opcode] = e
	}
	for _, e := range messages {
		if _, dup := t.message[e.Opcode]; dup {
			panic(fmt.Sprintf("message: duplicate message opcode %#04x", e.Opcode))
		}
		t.message[e.Opcode] = e
	}
	for _, e := range pushMessages {
		if _, dup := t.push[e.Opcode]; dup {
			panic(fmt.Sprintf("message: duplicate push opcode %#04x", e.Opcode))
		}
		t.push[e.Opcode] = e
	}
	return t
}

// lookup finds the Entry and kind registered for opcode, across all three
// registries.
func (t *Table) lookup(opcode uint16) (Entry, kind, bool) {
	if e, ok := t.reqResp[opcode]; ok {
		return e, kindRequestResponse, true
	}
	if e, ok := t.message[opcode]; ok {
		return e, kindMessage, true
	}
	if e, ok := t.push[opcode]; ok {
		return e, kindPushMessage, true
	}
	return Entry{}, 0, false
}

// newBody constructs a zero Record for opcode's request/message/push body.
func (t *Table) newBody(opcode uint16) (Record, bool) {
	e, _, ok := t.lookup(opcode)
	if !ok {
		return nil, false
	}
	return e.New(), true
}

// newResponse constructs a zero Record for a REQUEST_RESPONSE opcode's
// reply body. ok is false for any opcode not registered as
// REQUEST_RESPONSE.
func (t *Table) newResponse(opcode uint16) (Record, bool) {
	e, ok := t.reqResp[opcode]
	if !ok {
		return nil, false
	}
	return e.RespNew(), true
}

// expectsReply reports whether opcode is a REQUEST_RESPONSE opcode, i.e.
// whether Stream.SendRequest should track it in outstanding pending the
// peer's reply (and whether Stream.Reply may answer it).
func (t *Table) expectsReply(opcode uint16) bool {
	_, ok := t.reqResp[opcode]
	return ok
}
