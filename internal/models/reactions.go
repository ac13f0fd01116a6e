package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Reactions maps an emoji to the ids of the users who applied it.
// An emoji key is never mapped to an empty list and a list never holds duplicates.
type Reactions map[string][]string

// Clone returns a deep copy. A nil map clones to an empty one.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string{}, users...)
	}
	return out
}

// Has reports whether userID reacted with emoji.
func (r Reactions) Has(emoji, userID string) bool {
	for _, u := range r[emoji] {
		if u == userID {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer. The JSON is passed as text so the driver
// does not bytea-encode it on the way into a JSONB column.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (r *Reactions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Reactions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("reactions: unsupported type %T", src)
	}
	out := Reactions{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("reactions: %w", err)
		}
	}
	*r = out
	return nil
}
