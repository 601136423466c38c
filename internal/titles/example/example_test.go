package example

import (
	"testing"

	"github.com/udisondev/frpg2go/internal/message"
)

// fakeResponder records the last Reply/Push call for assertions, standing
// in for a real message.Stream in handler tests.
type fakeResponder struct {
	repliedEnv  message.Envelope
	repliedBody message.Record
	pushOpcode  uint16
	pushBody    message.Record
}

func (f *fakeResponder) Reply(env message.Envelope, resp message.Record) error {
	f.repliedEnv, f.repliedBody = env, resp
	return nil
}

func (f *fakeResponder) Push(opcode uint16, body message.Record) error {
	f.pushOpcode, f.pushBody = opcode, body
	return nil
}

func TestAnnouncementResponseRoundTrip(t *testing.T) {
	want := []string{"patch notes", "server restart at 03:00 UTC"}
	resp := &GetAnnouncementListResponse{Announcements: want}

	encoded, err := resp.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded GetAnnouncementListResponse
	if err := decoded.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Announcements) != len(want) {
		t.Fatalf("got %d announcements, want %d", len(decoded.Announcements), len(want))
	}
	for i, a := range want {
		if decoded.Announcements[i] != a {
			t.Errorf("announcement %d = %q, want %q", i, decoded.Announcements[i], a)
		}
	}
}

func TestAnnouncementResponseEmpty(t *testing.T) {
	resp := &GetAnnouncementListResponse{}
	encoded, err := resp.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(encoded) != 0 {
		t.Errorf("expected empty wire form for empty announcements, got %d bytes", len(encoded))
	}

	var decoded GetAnnouncementListResponse
	if err := decoded.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Announcements) != 0 {
		t.Errorf("expected no announcements, got %v", decoded.Announcements)
	}
}

func TestServerAnnouncementPushRoundTrip(t *testing.T) {
	push := &ServerAnnouncementPush{Text: "new event starting"}
	encoded, err := push.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ServerAnnouncementPush
	if err := decoded.Unmarshal(encoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Text != push.Text {
		t.Errorf("text = %q, want %q", decoded.Text, push.Text)
	}
}

func TestHandlerRepliesWithFeedSnapshot(t *testing.T) {
	feed := NewFeed()
	feed.Post("hello")
	feed.Post("world")
	h := NewHandler(feed)

	env := message.Envelope{Opcode: OpcodeGetAnnouncementList, MsgIndex: 3}
	rec := &fakeResponder{}
	outcome, err := h.Handle(rec, env, &GetAnnouncementListRequest{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != message.Handled {
		t.Fatalf("outcome = %v, want Handled", outcome)
	}
	if rec.repliedEnv != env {
		t.Errorf("replied envelope = %+v, want %+v", rec.repliedEnv, env)
	}
	resp, ok := rec.repliedBody.(*GetAnnouncementListResponse)
	if !ok {
		t.Fatalf("replied body type = %T, want *GetAnnouncementListResponse", rec.repliedBody)
	}
	if len(resp.Announcements) != 2 || resp.Announcements[0] != "hello" || resp.Announcements[1] != "world" {
		t.Errorf("replied announcements = %v", resp.Announcements)
	}
}

func TestHandlerIgnoresUnknownOpcode(t *testing.T) {
	h := NewHandler(NewFeed())
	rec := &fakeResponder{}
	outcome, err := h.Handle(rec, message.Envelope{Opcode: OpcodeServerAnnouncementPush}, &ServerAnnouncementPush{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != message.Unhandled {
		t.Errorf("outcome = %v, want Unhandled", outcome)
	}
}
