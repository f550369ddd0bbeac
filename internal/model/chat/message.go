package chat

// Message roles as stored and as sent to the model API.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Attachment carries one uploaded file as a base64 payload. Immutable once
// created; owned by exactly one message or by the pending staging list.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Message is a single conversation turn.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

// HasTag reports whether tag is already present, exact match.
func (m Message) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
