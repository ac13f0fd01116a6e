package chat

// Segment is a piece of a message body for rendering.
type Segment struct {
	Text     string `json:"text"`
	Mention  bool   `json:"mention,omitempty"`
	MemberID string `json:"member_id,omitempty"`
}

// HighlightMentions splits text into literal and mention segments. A mention
// that names an active member covers the whole name and carries its id; any
// other "@word" is highlighted without one. members may be nil.
func HighlightMentions(text string, members MentionResolver) []Segment {
	var out []Segment
	pos := 0
	for _, tok := range scanMentions(text) {
		if tok.start > pos {
			out = append(out, Segment{Text: text[pos:tok.start]})
		}
		seg := Segment{Mention: true}
		nameLen := 0
		if members != nil {
			if m, n, ok := tok.resolve(members); ok {
				seg.MemberID = m.ID
				nameLen = n
			}
		}
		if nameLen == 0 {
			ends := wordEnds(text[tok.name:tok.end])
			nameLen = ends[0]
		}
		seg.Text = text[tok.start : tok.name+nameLen]
		out = append(out, seg)
		pos = tok.name + nameLen
	}
	if pos < len(text) {
		out = append(out, Segment{Text: text[pos:]})
	}
	return out
}
