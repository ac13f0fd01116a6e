package chat

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"community-chat/internal/models"
)

const (
	// MaxMessageLength is the longest accepted body, in characters.
	MaxMessageLength = 2000
	// ReplyPreviewLength is how much of the replied-to body a reply keeps.
	ReplyPreviewLength = 50
)

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message too long (max 2000 chars)")
)

// Draft is raw composer input.
type Draft struct {
	Text    string
	ReplyTo *models.Message
	Kind    models.MessageKind
}

// Compose validates a draft and builds the message to store. ID and
// CreatedAt are left for the target store.
func Compose(d Draft, author Identity, groupID string, members MentionResolver) (models.Message, error) {
	body := strings.TrimSpace(d.Text)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return models.Message{}, ErrMessageTooLong
	}

	kind := d.Kind
	if kind == "" {
		kind = models.KindText
	}
	msg := models.Message{
		GroupID:       groupID,
		UserID:        author.UserID,
		DisplayName:   author.DisplayName,
		Body:          body,
		TextDirection: models.DetectDirection(body),
		Kind:          kind,
		Mentions:      ExtractMentions(body, members),
		Reactions:     models.Reactions{},
	}
	if d.ReplyTo != nil {
		msg.ReplyTo = ReplySnapshot(*d.ReplyTo)
	}
	return msg, nil
}

// ReplySnapshot captures the parts of target a reply keeps forever.
func ReplySnapshot(target models.Message) *models.ReplyRef {
	return &models.ReplyRef{
		MessageID:   target.ID,
		DisplayName: target.DisplayName,
		Preview:     truncateRunes(target.Redacted().Body, ReplyPreviewLength),
	}
}

// ExtractMentions returns the ids of members mentioned in text, in order of
// first appearance and without duplicates.
func ExtractMentions(text string, members MentionResolver) []string {
	ids := []string{}
	if members == nil {
		return ids
	}
	seen := make(map[string]struct{})
	for _, tok := range scanMentions(text) {
		m, _, ok := tok.resolve(members)
		if !ok {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids
}

// mentionToken is an "@" and the run of word and whitespace characters after it.
type mentionToken struct {
	start int // offset of '@'
	name  int // offset of the first name character
	end   int // end of the run
	text  string
}

// resolve finds the longest run of whole words that names a member. It
// returns the byte length of the matched name.
func (t mentionToken) resolve(members MentionResolver) (models.Member, int, bool) {
	run := t.text[t.name-t.start : t.end-t.start]
	ends := wordEnds(run)
	for i := len(ends) - 1; i >= 0; i-- {
		if m, ok := members.Resolve(run[:ends[i]]); ok {
			return m, ends[i], true
		}
	}
	return models.Member{}, 0, false
}

func scanMentions(text string) []mentionToken {
	var tokens []mentionToken
	prev := rune(-1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '@' || isWordRune(prev) {
			prev = r
			i += size
			continue
		}
		nameStart := i + size
		first, _ := utf8.DecodeRuneInString(text[nameStart:])
		if nameStart >= len(text) || !isWordRune(first) {
			prev = r
			i = nameStart
			continue
		}
		end := nameStart
		for end < len(text) {
			c, n := utf8.DecodeRuneInString(text[end:])
			if !isWordRune(c) && !unicode.IsSpace(c) {
				break
			}
			end += n
		}
		tokens = append(tokens, mentionToken{start: i, name: nameStart, end: end, text: text[i:end]})
		prev, _ = utf8.DecodeLastRuneInString(text[:end])
		i = end
	}
	return tokens
}

// wordEnds lists the byte offset after each word of run.
func wordEnds(run string) []int {
	var ends []int
	inWord := false
	for i, r := range run {
		if unicode.IsSpace(r) {
			if inWord {
				ends = append(ends, i)
			}
			inWord = false
			continue
		}
		inWord = true
	}
	if inWord {
		ends = append(ends, len(run))
	}
	return ends
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
