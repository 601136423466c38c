// Package example is a minimal demonstration title: one REQUEST_RESPONSE
// opcode pair and one PUSH_MESSAGE, wired through internal/message end to
// end (spec.md §8 scenario 2, "request announcement list"). Per-title
// game-logic handlers are explicitly out of this core's scope (spec.md
// §1 Non-goals); this package exists only to exercise the dispatch path,
// not as a real title's content.
//
// Records are encoded with google.golang.org/protobuf/encoding/protowire,
// the same low-level wire-format primitives a generated .pb.go message
// would use, hand-written here because no protoc invocation is available
// in this environment (see DESIGN.md).
package example

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const fieldAnnouncements protowire.Number = 1
const fieldText protowire.Number = 1

// GetAnnouncementListRequest carries no fields; the opcode itself is the
// whole request.
type GetAnnouncementListRequest struct{}

func (r *GetAnnouncementListRequest) Marshal() ([]byte, error) { return nil, nil }
func (r *GetAnnouncementListRequest) Unmarshal(b []byte) error { return nil }

// GetAnnouncementListResponse carries the server's current announcement
// feed as a repeated string field, the shape original_source's
// announcement response message uses.
type GetAnnouncementListResponse struct {
	Announcements []string
}

func (r *GetAnnouncementListResponse) Marshal() ([]byte, error) {
	var buf []byte
	for _, a := range r.Announcements {
		buf = protowire.AppendTag(buf, fieldAnnouncements, protowire.BytesType)
		buf = protowire.AppendString(buf, a)
	}
	return buf, nil
}

func (r *GetAnnouncementListResponse) Unmarshal(b []byte) error {
	r.Announcements = nil
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("example: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldAnnouncements && typ == protowire.BytesType {
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("example: consuming announcement: %w", protowire.ParseError(n))
			}
			r.Announcements = append(r.Announcements, s)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("example: skipping unknown field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// ServerAnnouncementPush is a server-initiated PUSH_MESSAGE announcing a
// single new item to a connected session without it having asked.
type ServerAnnouncementPush struct {
	Text string
}

func (r *ServerAnnouncementPush) Marshal() ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldText, protowire.BytesType)
	buf = protowire.AppendString(buf, r.Text)
	return buf, nil
}

func (r *ServerAnnouncementPush) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("example: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldText && typ == protowire.BytesType {
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("example: consuming text: %w", protowire.ParseError(n))
			}
			r.Text = s
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("example: skipping unknown field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
