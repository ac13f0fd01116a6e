package chat

import (
	"sort"
	"sync"

	"community-chat/internal/models"
	"community-chat/internal/realtime"
)

// GroupSeed supplies the built-in group list.
type GroupSeed interface {
	DefaultGroupID() string
	Groups() []models.Group
}

// Registry caches the group list, serving the built-in groups while the live
// feed has none.
type Registry struct {
	seed GroupSeed

	feed *liveFeed

	mu   sync.RWMutex
	live []models.Group
}

// NewRegistry creates a registry backed by seed.
func NewRegistry(seed GroupSeed) *Registry {
	return &Registry{seed: seed}
}

// Start follows the live group feed. onChange runs after every update.
func (r *Registry) Start(src realtime.Source, onChange func()) {
	r.feed = newLiveFeed("groups", func(onError realtime.ErrorHandler) realtime.Subscription {
		return src.SubscribeGroups(func(groups []models.Group) {
			r.Replace(groups)
			if onChange != nil {
				onChange()
			}
		}, onError)
	})
	r.feed.start()
}

// Revive reopens the group feed if the source ended it.
func (r *Registry) Revive() bool {
	if r.feed == nil {
		return false
	}
	return r.feed.revive()
}

// Replace installs the live group list.
func (r *Registry) Replace(groups []models.Group) {
	live := make([]models.Group, len(groups))
	copy(live, groups)
	r.mu.Lock()
	r.live = live
	r.mu.Unlock()
}

// DefaultGroupID is the group that is always selectable.
func (r *Registry) DefaultGroupID() string {
	return r.seed.DefaultGroupID()
}

// Groups returns the groups to show, ordered by English name.
func (r *Registry) Groups() []models.Group {
	r.mu.RLock()
	live := r.live
	r.mu.RUnlock()

	if len(live) == 0 {
		groups := r.seed.Groups()
		sortGroups(groups)
		return groups
	}

	defaultID := r.seed.DefaultGroupID()
	groups := make([]models.Group, 0, len(live)+1)
	hasDefault := false
	for _, g := range live {
		if g.ID == defaultID {
			g.IsDefault = true
			hasDefault = true
		}
		groups = append(groups, g)
	}
	if !hasDefault {
		for _, g := range r.seed.Groups() {
			if g.ID == defaultID {
				groups = append(groups, g)
			}
		}
	}
	sortGroups(groups)
	return groups
}

// Has reports whether groupID can be selected.
func (r *Registry) Has(groupID string) bool {
	for _, g := range r.Groups() {
		if g.ID == groupID {
			return true
		}
	}
	return false
}

// Close cancels the group feed.
func (r *Registry) Close() {
	if r.feed != nil {
		r.feed.close()
	}
}

func sortGroups(groups []models.Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Name.EN < groups[j].Name.EN
	})
}
