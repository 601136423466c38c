package example

import (
	"sync"

	"github.com/udisondev/frpg2go/internal/message"
)

// Feed is the in-memory announcement feed this demonstration title serves
// to GetAnnouncementList and broadcasts via ServerAnnouncementPush.
// Real persistence is explicitly out of this core's scope (spec.md §1).
type Feed struct {
	mu            sync.RWMutex
	announcements []string
}

// NewFeed builds an empty Feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Post appends a new announcement.
func (f *Feed) Post(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, text)
}

// Snapshot returns a copy of the current feed.
func (f *Feed) Snapshot() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.announcements))
	copy(out, f.announcements)
	return out
}

// Handler implements message.Handler for this title's one opcode.
type Handler struct {
	Feed *Feed
}

// NewHandler builds a Handler serving feed.
func NewHandler(feed *Feed) *Handler {
	return &Handler{Feed: feed}
}

func (h *Handler) Handle(r message.Responder, env message.Envelope, body message.Record) (message.Outcome, error) {
	if env.Opcode != OpcodeGetAnnouncementList {
		return message.Unhandled, nil
	}
	if err := r.Reply(env, &GetAnnouncementListResponse{Announcements: h.Feed.Snapshot()}); err != nil {
		return message.Errored, err
	}
	return message.Handled, nil
}
