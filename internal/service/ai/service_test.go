package ai

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
)

func TestBuildModelMessagesStructure(t *testing.T) {
	history := []chat.Message{
		{ID: "u1", Role: chat.RoleUser, Text: "What is osmosis?"},
		{ID: "m1", Role: chat.RoleModel, Text: "Osmosis is..."},
	}

	out := buildModelMessages(history, "And diffusion?", nil, false)

	if len(out) != 4 {
		t.Fatalf("expected system + 2 history + prompt, got %d messages", len(out))
	}
	if out[0].Role != schema.System {
		t.Fatalf("first message role = %v, want system", out[0].Role)
	}
	if !strings.Contains(out[0].Content, "StudyBuddy") {
		t.Fatal("system message must carry the assistant instruction")
	}
	if out[1].Role != schema.User || out[1].Content != "What is osmosis?" {
		t.Fatalf("unexpected history turn: %+v", out[1])
	}
	if out[2].Role != schema.Assistant || out[2].Content != "Osmosis is..." {
		t.Fatalf("unexpected history turn: %+v", out[2])
	}
	if out[3].Role != schema.User || out[3].Content != "And diffusion?" {
		t.Fatalf("unexpected prompt turn: %+v", out[3])
	}
}

func TestBuildModelMessagesCodeModeAugmentsPromptOnly(t *testing.T) {
	history := []chat.Message{
		{ID: "u1", Role: chat.RoleUser, Text: "earlier question"},
	}

	out := buildModelMessages(history, "show me quicksort", nil, true)

	last := out[len(out)-1]
	if !strings.Contains(last.Content, "Code Explanation Mode") {
		t.Fatal("code mode must append the instruction to the outgoing prompt")
	}
	if !strings.HasPrefix(last.Content, "show me quicksort") {
		t.Fatalf("prompt text must come first, got %q", last.Content)
	}
	if strings.Contains(out[1].Content, "Code Explanation Mode") {
		t.Fatal("history turns must never carry the code mode instruction")
	}
}

func TestUserMessageWithAttachments(t *testing.T) {
	attachments := []chat.Attachment{
		{ID: "a1", Name: "cells.png", MimeType: "image/png", Data: "aGk="},
		{ID: "a2", Name: "notes.pdf", MimeType: "application/pdf", Data: "aGk="},
	}

	msg := userMessage("explain these", attachments)

	if msg.Content != "" {
		t.Fatal("multimodal turns carry parts, not flat content")
	}
	if len(msg.MultiContent) != 3 {
		t.Fatalf("expected text part plus 2 attachment parts, got %d", len(msg.MultiContent))
	}
	if msg.MultiContent[0].Type != schema.ChatMessagePartTypeText || msg.MultiContent[0].Text != "explain these" {
		t.Fatalf("unexpected text part: %+v", msg.MultiContent[0])
	}

	img := msg.MultiContent[1]
	if img.Type != schema.ChatMessagePartTypeImageURL || img.ImageURL == nil {
		t.Fatalf("image attachment must map to an image part: %+v", img)
	}
	if img.ImageURL.URL != "data:image/png;base64,aGk=" {
		t.Fatalf("unexpected image URL: %q", img.ImageURL.URL)
	}

	file := msg.MultiContent[2]
	if file.Type != schema.ChatMessagePartTypeFileURL || file.FileURL == nil {
		t.Fatalf("document attachment must map to a file part: %+v", file)
	}
	if file.FileURL.Name != "notes.pdf" || file.FileURL.MIMEType != "application/pdf" {
		t.Fatalf("unexpected file part metadata: %+v", file.FileURL)
	}
}

func TestUserMessageWithoutAttachments(t *testing.T) {
	msg := userMessage("plain question", nil)
	if msg.Content != "plain question" || len(msg.MultiContent) != 0 {
		t.Fatalf("plain turns must use flat content: %+v", msg)
	}
}

func TestIsImage(t *testing.T) {
	if !isImage("image/png") || !isImage("image/jpeg") {
		t.Fatal("image mime types must be detected")
	}
	if isImage("application/pdf") || isImage("text/plain") || isImage("image/") {
		t.Fatal("non-image mime types must not be detected")
	}
}
