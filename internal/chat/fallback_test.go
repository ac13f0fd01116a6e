package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/models"
)

func seedFor(groupID string) SeedConversation {
	return func(id string) []models.Message {
		if id != groupID {
			return []models.Message{}
		}
		return []models.Message{{ID: "seed-1", GroupID: id, Body: "welcome"}}
	}
}

func TestFallbackStartsLocalWithSeed(t *testing.T) {
	f := NewFallback(seedFor("general"))

	assert.Equal(t, models.ModeLocal, f.Mode("general"))
	assert.Equal(t, []string{"welcome"}, bodies(f.Messages("general")))
	assert.Empty(t, f.Messages("events"))
}

func TestFallbackEmptySnapshotStaysLocal(t *testing.T) {
	f := NewFallback(seedFor("general"))
	require.True(t, f.AppendLocal("general", models.Message{ID: "local-1", Body: "mine"}))

	assert.False(t, f.Snapshot("general", nil))
	assert.Equal(t, models.ModeLocal, f.Mode("general"))
	assert.Equal(t, []string{"welcome", "mine"}, bodies(f.Messages("general")))

	assert.Equal(t, models.ModeLocal, f.Error("general"))
	assert.Equal(t, []string{"welcome", "mine"}, bodies(f.Messages("general")))
}

func TestFallbackSyncIsSticky(t *testing.T) {
	f := NewFallback(seedFor("general"))
	f.AppendLocal("general", models.Message{ID: "local-1", Body: "mine"})

	assert.True(t, f.Snapshot("general", []models.Message{{ID: "a", Body: "live"}}))
	assert.Equal(t, models.ModeSynced, f.Mode("general"))
	assert.Equal(t, []string{"live"}, bodies(f.Messages("general")))

	assert.Equal(t, models.ModeSynced, f.Error("general"))
	assert.Equal(t, []string{"live"}, bodies(f.Messages("general")), "error freezes the last snapshot")

	assert.False(t, f.Snapshot("general", nil))
	assert.Equal(t, models.ModeSynced, f.Mode("general"))
	assert.Empty(t, f.Messages("general"))

	assert.False(t, f.AppendLocal("general", models.Message{ID: "local-2"}))
}

func TestFallbackModesArePerGroup(t *testing.T) {
	f := NewFallback(nil)
	f.Snapshot("events", []models.Message{{ID: "a"}})

	assert.Equal(t, models.ModeSynced, f.Mode("events"))
	assert.Equal(t, models.ModeLocal, f.Mode("youth"))
}

func TestFallbackFindAndReplaceLocalReactions(t *testing.T) {
	f := NewFallback(seedFor("general"))

	msg, ok := f.Find("general", "seed-1")
	require.True(t, ok)
	assert.Equal(t, "welcome", msg.Body)

	require.True(t, f.ReplaceLocalReactions("general", "seed-1", models.Reactions{"👍": {"u1"}}))
	msg, _ = f.Find("general", "seed-1")
	assert.Equal(t, []string{"u1"}, msg.Reactions["👍"])

	assert.False(t, f.ReplaceLocalReactions("general", "missing", models.Reactions{}))
	_, ok = f.Find("general", "missing")
	assert.False(t, ok)
}

func TestFallbackMessagesAreCopies(t *testing.T) {
	f := NewFallback(seedFor("general"))

	msgs := f.Messages("general")
	msgs[0].Body = "mutated"

	assert.Equal(t, "welcome", f.Messages("general")[0].Body)
}
