package example

import "github.com/udisondev/frpg2go/internal/message"

const (
	// OpcodeGetAnnouncementList is a REQUEST_RESPONSE opcode.
	OpcodeGetAnnouncementList uint16 = 0x1001
	// OpcodeServerAnnouncementPush is a PUSH_MESSAGE opcode.
	OpcodeServerAnnouncementPush uint16 = 0x1002
)

// NewTable builds this demonstration title's opcode registry.
func NewTable() *message.Table {
	return message.NewTable(
		[]message.Entry{{
			Opcode:  OpcodeGetAnnouncementList,
			New:     func() message.Record { return &GetAnnouncementListRequest{} },
			RespNew: func() message.Record { return &GetAnnouncementListResponse{} },
		}},
		nil,
		[]message.Entry{{
			Opcode: OpcodeServerAnnouncementPush,
			New:    func() message.Record { return &ServerAnnouncementPush{} },
		}},
	)
}
