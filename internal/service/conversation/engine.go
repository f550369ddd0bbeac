// Package conversation implements the state machine governing how a
// session's message list evolves: send, edit-and-regenerate, tag and
// attachment staging. It owns the single interaction with the AI
// responder; responder failures are absorbed into the conversation as a
// fixed fallback message and never surface to the caller.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
)

var (
	// ErrConversationBusy rejects a second send/edit against a session
	// that is still awaiting a model reply. Interleaving would corrupt
	// message ordering.
	ErrConversationBusy = errors.New("a reply is already in flight for this session")

	ErrAttachmentTooLarge = errors.New("attachment exceeds the 50 MiB upload limit")
)

// Fallback texts substituted when the responder fails. The failure is
// absorbed into the conversation itself.
const (
	sendFailureText = "I'm sorry, I encountered an error while processing your request. Please try again."
	editFailureText = "I'm sorry, I encountered an error while regenerating the response."
)

const maxAttachmentBytes = 50 << 20

// Responder is the black-box model contract: given prior history, the new
// prompt and its attachments, produce reply text, fallibly.
type Responder interface {
	Generate(ctx context.Context, history []chat.Message, text string, attachments []chat.Attachment, codeMode bool) (string, error)
}

// Engine drives message-list transitions for all sessions of the active
// identity. Send/Edit are single-flight per session; different sessions
// proceed independently.
type Engine struct {
	sessions  *session.Store
	responder Responder

	mu       sync.Mutex
	inFlight map[string]bool
	staged   map[string][]chat.Attachment
}

// NewEngine builds the engine. responder may be nil, in which case every
// send lands on the fallback message.
func NewEngine(sessions *session.Store, responder Responder) *Engine {
	return &Engine{
		sessions:  sessions,
		responder: responder,
		inFlight:  make(map[string]bool),
		staged:    make(map[string][]chat.Attachment),
	}
}

// Send appends a user message and the resulting model reply. A blank text
// with no attachments is a silent no-op. Passing nil attachments consumes
// the session's staged attachment list.
func (e *Engine) Send(ctx context.Context, sessionID, text string, attachments []chat.Attachment, codeMode bool) (chat.ChatSession, error) {
	// The flag is taken before the snapshot: reading first would let a
	// second send base its update on a stale message list.
	if err := e.acquire(sessionID); err != nil {
		return chat.ChatSession{}, err
	}
	defer e.release(sessionID)

	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return chat.ChatSession{}, session.ErrSessionNotFound
	}

	fromStaging := attachments == nil
	if fromStaging {
		attachments = e.StagedAttachments(sessionID)
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return sess, nil
	}

	history := sess.Messages
	userMsg := chat.Message{
		ID:          uuid.NewString(),
		Role:        chat.RoleUser,
		Text:        text,
		Attachments: attachments,
		Timestamp:   chat.NowMillis(),
	}

	sess.Messages = append(sess.Messages, userMsg)
	if len(history) == 0 {
		sess.Title = chat.TitleFromText(text)
	}
	sess.UpdatedAt = chat.NowMillis()
	e.sessions.Update(ctx, sess)

	if fromStaging {
		e.clearStaged(sessionID)
	}

	reply := e.respond(ctx, history, text, attachments, codeMode, sendFailureText)
	sess.Messages = append(sess.Messages, reply)
	sess.UpdatedAt = chat.NowMillis()
	e.sessions.Update(ctx, sess)

	return sess, nil
}

// Edit replaces a user message's text, discards the entire conversation
// after it and regenerates the reply from the truncated history. The
// truncation is destructive. An unknown or non-user message id is a
// silent no-op.
func (e *Engine) Edit(ctx context.Context, sessionID, messageID, newText string, codeMode bool) (chat.ChatSession, error) {
	if err := e.acquire(sessionID); err != nil {
		return chat.ChatSession{}, err
	}
	defer e.release(sessionID)

	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return chat.ChatSession{}, session.ErrSessionNotFound
	}

	idx := -1
	for i, m := range sess.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 || sess.Messages[idx].Role != chat.RoleUser {
		return sess, nil
	}

	edited := sess.Messages[idx]
	edited.Text = newText

	history := sess.Messages[:idx]
	sess.Messages = append(history, edited)
	sess.UpdatedAt = chat.NowMillis()
	e.sessions.Update(ctx, sess)

	reply := e.respond(ctx, history, newText, edited.Attachments, codeMode, editFailureText)
	sess.Messages = append(sess.Messages, reply)
	sess.UpdatedAt = chat.NowMillis()
	e.sessions.Update(ctx, sess)

	return sess, nil
}

// AddTag appends tag to the message's tag sequence unless an identical
// tag is already present (case-sensitive). Idempotent.
func (e *Engine) AddTag(ctx context.Context, sessionID, messageID, tag string) (chat.ChatSession, error) {
	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return chat.ChatSession{}, session.ErrSessionNotFound
	}
	if tag == "" {
		return sess, nil
	}

	found := false
	for i, m := range sess.Messages {
		if m.ID != messageID {
			continue
		}
		found = true
		if !m.HasTag(tag) {
			sess.Messages[i].Tags = append(sess.Messages[i].Tags, tag)
		}
		break
	}
	if !found {
		return sess, nil
	}

	sess.UpdatedAt = chat.NowMillis()
	e.sessions.Update(ctx, sess)
	return sess, nil
}

// SummarizeAttachment sends the fixed summary prompt with the attachment
// as the only payload, removing it from the staging area if it was there.
func (e *Engine) SummarizeAttachment(ctx context.Context, sessionID string, att chat.Attachment) (chat.ChatSession, error) {
	e.UnstageAttachment(sessionID, att.ID)
	prompt := fmt.Sprintf("Please provide a detailed summary of the document %q, highlighting main topics and key takeaways.", att.Name)
	return e.Send(ctx, sessionID, prompt, []chat.Attachment{att}, false)
}

// StageAttachment adds an upload to the session's pending list, to be
// consumed by the next send. Enforces the advisory size limit on the
// decoded payload.
func (e *Engine) StageAttachment(sessionID, name, mimeType, data string) (chat.Attachment, error) {
	if decodedLen(data) > maxAttachmentBytes {
		return chat.Attachment{}, ErrAttachmentTooLarge
	}
	att := chat.Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		Data:     data,
	}
	e.mu.Lock()
	e.staged[sessionID] = append(e.staged[sessionID], att)
	e.mu.Unlock()
	return att, nil
}

// StagedAttachments returns a copy of the session's pending list.
func (e *Engine) StagedAttachments(sessionID string) []chat.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]chat.Attachment(nil), e.staged[sessionID]...)
}

// UnstageAttachment drops one pending attachment by id.
func (e *Engine) UnstageAttachment(sessionID, attachmentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	staged := e.staged[sessionID]
	for i, att := range staged {
		if att.ID == attachmentID {
			e.staged[sessionID] = append(staged[:i:i], staged[i+1:]...)
			return true
		}
	}
	return false
}

// respond invokes the responder and converts any failure into the fixed
// fallback text so no fault ever propagates to the caller.
func (e *Engine) respond(ctx context.Context, history []chat.Message, text string, attachments []chat.Attachment, codeMode bool, fallback string) chat.Message {
	replyText := fallback
	if e.responder == nil {
		log.Printf("[conversation] no responder configured, substituting fallback reply")
	} else if out, err := e.responder.Generate(ctx, history, text, attachments, codeMode); err != nil {
		log.Printf("[conversation] responder failed: %v", err)
	} else {
		replyText = out
	}
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleModel,
		Text:      replyText,
		Timestamp: chat.NowMillis(),
	}
}

func (e *Engine) acquire(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[sessionID] {
		return ErrConversationBusy
	}
	e.inFlight[sessionID] = true
	return nil
}

func (e *Engine) release(sessionID string) {
	e.mu.Lock()
	delete(e.inFlight, sessionID)
	e.mu.Unlock()
}

func (e *Engine) clearStaged(sessionID string) {
	e.mu.Lock()
	delete(e.staged, sessionID)
	e.mu.Unlock()
}

// decodedLen estimates the decoded byte length of a base64 string.
func decodedLen(data string) int {
	n := len(data) / 4 * 3
	if strings.HasSuffix(data, "==") {
		n -= 2
	} else if strings.HasSuffix(data, "=") {
		n--
	}
	return n
}
