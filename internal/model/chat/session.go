package chat

import (
	"sort"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

// DefaultTitle is assigned to sessions that have not received a first
// user message yet.
const DefaultTitle = "New Study Session"

const titleLimit = 30

// ChatSession groups the chronological message list for one conversation.
// Messages are append/truncate only; UpdatedAt is refreshed on every
// mutation of Messages or Title and never falls below CreatedAt.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// NewSession provisions an empty session owned by userID.
func NewSession(userID string) ChatSession {
	now := NowMillis()
	return ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     DefaultTitle,
		Messages:  make([]Message, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// the authoritative in-memory state.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		cm := m
		if m.Attachments != nil {
			cm.Attachments = append([]Attachment(nil), m.Attachments...)
		}
		if m.Tags != nil {
			cm.Tags = append([]string(nil), m.Tags...)
		}
		out.Messages[i] = cm
	}
	return out
}

// TitleFromText derives a session title from the first user message: a
// strict 30-unit prefix with "..." appended only when the source is
// longer. Length and cut are measured in UTF-16 code units, so characters
// outside the basic plane count as two. Empty input falls back to
// "Study Session"; whitespace-only text is kept verbatim.
func TitleFromText(text string) string {
	if text == "" {
		return "Study Session"
	}
	units := utf16.Encode([]rune(text))
	if len(units) <= titleLimit {
		return text
	}
	return string(utf16.Decode(units[:titleLimit])) + "..."
}

// SortSessions orders a collection for display: most recently updated
// first, ties broken by ID so the order stays deterministic.
func SortSessions(sessions map[string]ChatSession) []ChatSession {
	out := make([]ChatSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NowMillis is the timestamp source for all session and message clocks.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
