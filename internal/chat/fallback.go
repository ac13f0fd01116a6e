package chat

import "community-chat/internal/models"

// SeedConversation returns the demo messages of a group. Groups without a
// seed conversation get an empty slice.
type SeedConversation func(groupID string) []models.Message

type groupFeed struct {
	mode   models.StreamMode
	live   []models.Message
	local  []models.Message
	seeded bool
}

// Fallback tracks the stream mode of every group a session has visited and
// owns both candidate feeds. Callers serialize access.
type Fallback struct {
	seed  SeedConversation
	feeds map[string]*groupFeed
}

// NewFallback creates a controller where every group starts LOCAL.
func NewFallback(seed SeedConversation) *Fallback {
	if seed == nil {
		seed = func(string) []models.Message { return []models.Message{} }
	}
	return &Fallback{seed: seed, feeds: make(map[string]*groupFeed)}
}

func (f *Fallback) feed(groupID string) *groupFeed {
	fd, ok := f.feeds[groupID]
	if !ok {
		fd = &groupFeed{mode: models.ModeLocal}
		f.feeds[groupID] = fd
	}
	return fd
}

// Mode reports the current mode of groupID.
func (f *Fallback) Mode(groupID string) models.StreamMode {
	return f.feed(groupID).mode
}

// Snapshot records a live snapshot and reports whether the group just
// switched to SYNCED. The first non-empty snapshot discards local messages.
func (f *Fallback) Snapshot(groupID string, msgs []models.Message) bool {
	fd := f.feed(groupID)
	if fd.mode == models.ModeSynced {
		fd.live = msgs
		return false
	}
	if len(msgs) == 0 {
		return false
	}
	fd.mode = models.ModeSynced
	fd.live = msgs
	fd.local = nil
	fd.seeded = false
	return true
}

// Error records a subscription failure. A LOCAL group keeps its fallback
// feed and a SYNCED group keeps its last live snapshot, so nothing changes.
func (f *Fallback) Error(groupID string) models.StreamMode {
	return f.feed(groupID).mode
}

// Messages returns what should be rendered for groupID.
func (f *Fallback) Messages(groupID string) []models.Message {
	fd := f.feed(groupID)
	var src []models.Message
	if fd.mode == models.ModeSynced {
		src = fd.live
	} else {
		src = f.localFeed(groupID, fd)
	}
	out := make([]models.Message, 0, len(src))
	for _, m := range src {
		out = append(out, m.Clone())
	}
	return out
}

// Find looks up a message in the feed the current mode renders.
func (f *Fallback) Find(groupID, messageID string) (models.Message, bool) {
	fd := f.feed(groupID)
	list := fd.live
	if fd.mode == models.ModeLocal {
		list = f.localFeed(groupID, fd)
	}
	for _, m := range list {
		if m.ID == messageID {
			return m.Clone(), true
		}
	}
	return models.Message{}, false
}

// AppendLocal adds msg after the seed conversation and earlier local sends.
// It refuses once the group is SYNCED.
func (f *Fallback) AppendLocal(groupID string, msg models.Message) bool {
	fd := f.feed(groupID)
	if fd.mode != models.ModeLocal {
		return false
	}
	fd.local = append(f.localFeed(groupID, fd), msg.Clone())
	return true
}

// ReplaceLocalReactions swaps the reaction map of a local message.
func (f *Fallback) ReplaceLocalReactions(groupID, messageID string, reactions models.Reactions) bool {
	fd := f.feed(groupID)
	if fd.mode != models.ModeLocal {
		return false
	}
	list := f.localFeed(groupID, fd)
	for i := range list {
		if list[i].ID == messageID {
			list[i].Reactions = reactions.Clone()
			return true
		}
	}
	return false
}

func (f *Fallback) localFeed(groupID string, fd *groupFeed) []models.Message {
	if !fd.seeded {
		fd.local = append(f.seed(groupID), fd.local...)
		fd.seeded = true
	}
	return fd.local
}
