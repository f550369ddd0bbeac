// Package ai implements the study-assistant responder on top of an Ark
// chat model. The rest of the core only sees the conversation.Responder
// contract: history in, reply text out, fallibly.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/nlzhang/study-buddy/backend/internal/config"
	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
)

// Service generates study-assistant replies via the configured chat model.
type Service struct {
	chatModel model.ChatModel
}

// NewService creates the responder from the Ark model configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel}, nil
}

// Generate produces reply text for the new user input given the prior
// conversation history. Attachments ride along as multimodal parts.
func (s *Service) Generate(ctx context.Context, history []chat.Message, text string, attachments []chat.Attachment, codeMode bool) (string, error) {
	input := buildModelMessages(history, text, attachments, codeMode)

	response, err := s.chatModel.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	if response.Content == "" {
		return "I processed the documents but couldn't generate a text response.", nil
	}

	log.Printf("[ai] generated reply, history=%d, length=%d", len(history), len(response.Content))
	return response.Content, nil
}

// buildModelMessages maps the stored conversation onto schema messages:
// system instruction, prior turns, then the new user input. Code mode
// augments the outgoing text only; the stored message is never modified.
func buildModelMessages(history []chat.Message, text string, attachments []chat.Attachment, codeMode bool) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+2)
	out = append(out, schema.SystemMessage(systemInstruction))

	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, userMessage(msg.Text, msg.Attachments))
		case chat.RoleModel:
			out = append(out, schema.AssistantMessage(msg.Text, nil))
		}
	}

	if codeMode {
		text += codeModeSuffix
	}
	out = append(out, userMessage(text, attachments))
	return out
}

// userMessage builds a user turn, expanding attachments into multimodal
// content parts when present.
func userMessage(text string, attachments []chat.Attachment) *schema.Message {
	if len(attachments) == 0 {
		return schema.UserMessage(text)
	}

	parts := make([]schema.ChatMessagePart, 0, len(attachments)+1)
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: text,
	})
	for _, att := range attachments {
		parts = append(parts, attachmentPart(att))
	}
	return &schema.Message{
		Role:         schema.User,
		MultiContent: parts,
	}
}

// attachmentPart converts one attachment into an inline data-URL part.
func attachmentPart(att chat.Attachment) schema.ChatMessagePart {
	url := fmt.Sprintf("data:%s;base64,%s", att.MimeType, att.Data)
	if isImage(att.MimeType) {
		return schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      url,
				MIMEType: att.MimeType,
			},
		}
	}
	return schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeFileURL,
		FileURL: &schema.ChatMessageFileURL{
			URL:      url,
			MIMEType: att.MimeType,
			Name:     att.Name,
		},
	}
}

func isImage(mimeType string) bool {
	return len(mimeType) > 6 && mimeType[:6] == "image/"
}
