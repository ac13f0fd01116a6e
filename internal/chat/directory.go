package chat

import (
	"strings"
	"sync"

	"community-chat/internal/models"
	"community-chat/internal/realtime"
)

// MentionResolver maps a display name to a mentionable member.
type MentionResolver interface {
	Resolve(name string) (models.Member, bool)
}

// Directory caches the active member roster.
type Directory struct {
	mu      sync.RWMutex
	members []models.Member
	byName  map[string]models.Member
	feed    *liveFeed
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{byName: make(map[string]models.Member)}
}

// Start follows the live member feed. onChange runs after every roster update.
func (d *Directory) Start(src realtime.Source, onChange func()) {
	d.feed = newLiveFeed("members", func(onError realtime.ErrorHandler) realtime.Subscription {
		return src.SubscribeMembers(func(members []models.Member) {
			d.Replace(members)
			if onChange != nil {
				onChange()
			}
		}, onError)
	})
	d.feed.start()
}

// Revive reopens the member feed if the source ended it. The last roster is
// served until the new subscription delivers.
func (d *Directory) Revive() bool {
	if d.feed == nil {
		return false
	}
	return d.feed.revive()
}

// Replace installs a new roster. Inactive members are dropped.
func (d *Directory) Replace(members []models.Member) {
	active := make([]models.Member, 0, len(members))
	byName := make(map[string]models.Member, len(members))
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		active = append(active, m)
		key := nameKey(m.DisplayName)
		if _, dup := byName[key]; !dup && key != "" {
			byName[key] = m
		}
	}
	d.mu.Lock()
	d.members = active
	d.byName = byName
	d.mu.Unlock()
}

// Resolve finds an active member whose display name equals name, ignoring case.
func (d *Directory) Resolve(name string) (models.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byName[nameKey(name)]
	return m, ok
}

// Members returns the active roster.
func (d *Directory) Members() []models.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Member, len(d.members))
	copy(out, d.members)
	return out
}

// Close cancels the member feed.
func (d *Directory) Close() {
	if d.feed != nil {
		d.feed.close()
	}
}

// nameKey folds case and collapses any whitespace run to one space.
func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
