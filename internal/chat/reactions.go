package chat

import "community-chat/internal/models"

// ToggleReaction returns the reaction map after userID toggles emoji. The input
// is not modified. Removing the last reactor drops the emoji key.
func ToggleReaction(current models.Reactions, emoji, userID string) models.Reactions {
	next := make(models.Reactions, len(current)+1)
	for key, users := range current {
		if len(users) == 0 {
			continue
		}
		next[key] = append([]string(nil), users...)
	}

	users := next[emoji]
	if !contains(users, userID) {
		next[emoji] = append(users, userID)
		return next
	}

	kept := users[:0]
	for _, u := range users {
		if u != userID {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		delete(next, emoji)
	} else {
		next[emoji] = kept
	}
	return next
}

func contains(users []string, userID string) bool {
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}
