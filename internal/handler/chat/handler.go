package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/service/app"
	"github.com/nlzhang/study-buddy/backend/internal/service/conversation"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
	"github.com/nlzhang/study-buddy/backend/pkg/utils"
)

// Handler exposes the session list and the conversation operations.
type Handler struct {
	controller *app.Controller
	engine     *conversation.Engine
}

// New creates the chat handler.
func New(controller *app.Controller, engine *conversation.Engine) *Handler {
	return &Handler{controller: controller, engine: engine}
}

// RegisterRoutes registers session and conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/current", h.handleCurrentSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/select", h.handleSelectSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)

	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Post("/sessions/{sessionID}/messages/{messageID}/edit", h.handleEditMessage)
	r.Post("/sessions/{sessionID}/messages/{messageID}/tags", h.handleAddTag)

	r.Post("/sessions/{sessionID}/attachments", h.handleStageAttachment)
	r.Get("/sessions/{sessionID}/attachments", h.handleListAttachments)
	r.Delete("/sessions/{sessionID}/attachments/{attachmentID}", h.handleUnstageAttachment)
	r.Post("/sessions/{sessionID}/attachments/{attachmentID}/summarize", h.handleSummarizeAttachment)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.controller.Sessions())
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.controller.NewSession(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, _ *http.Request) {
	sess, ok := h.controller.CurrentSession()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no session selected")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	for _, sess := range h.controller.Sessions() {
		if sess.ID == sessionID {
			utils.RespondJSON(w, http.StatusOK, sess)
			return
		}
	}
	utils.RespondError(w, http.StatusNotFound, "session not found")
}

func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.controller.SelectSession(sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"currentSessionId": sessionID})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.controller.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	current, _ := h.controller.CurrentSession()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"currentSessionId": current.ID})
}

type attachmentPayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload struct {
		Text        string               `json:"text"`
		Attachments *[]attachmentPayload `json:"attachments"`
		CodeMode    bool                 `json:"codeMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An absent attachments field means "consume the staged list"; an
	// explicit list (even empty) overrides staging.
	var attachments []chatmodel.Attachment
	if payload.Attachments != nil {
		attachments = make([]chatmodel.Attachment, 0, len(*payload.Attachments))
		for _, a := range *payload.Attachments {
			att, err := inlineAttachment(h.engine, sessionID, a)
			if err != nil {
				respondServiceError(w, err)
				return
			}
			attachments = append(attachments, att)
		}
	}

	sess, err := h.engine.Send(r.Context(), sessionID, payload.Text, attachments, payload.CodeMode)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

// inlineAttachment runs an inline upload through the staging size checks
// without leaving it staged.
func inlineAttachment(engine *conversation.Engine, sessionID string, a attachmentPayload) (chatmodel.Attachment, error) {
	att, err := engine.StageAttachment(sessionID, a.Name, a.MimeType, a.Data)
	if err != nil {
		return chatmodel.Attachment{}, err
	}
	engine.UnstageAttachment(sessionID, att.ID)
	return att, nil
}

func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	var payload struct {
		Text     string `json:"text"`
		CodeMode bool   `json:"codeMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.engine.Edit(r.Context(), sessionID, messageID, payload.Text, payload.CodeMode)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleAddTag(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	var payload struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.engine.AddTag(r.Context(), sessionID, messageID, strings.TrimSpace(payload.Tag))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleStageAttachment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload attachmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "attachment name is required")
		return
	}

	att, err := h.engine.StageAttachment(sessionID, payload.Name, payload.MimeType, payload.Data)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, att)
}

func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	utils.RespondJSON(w, http.StatusOK, h.engine.StagedAttachments(sessionID))
}

func (h *Handler) handleUnstageAttachment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	attachmentID := chi.URLParam(r, "attachmentID")
	if !h.engine.UnstageAttachment(sessionID, attachmentID) {
		utils.RespondError(w, http.StatusNotFound, "attachment not staged")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) handleSummarizeAttachment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	attachmentID := chi.URLParam(r, "attachmentID")

	var target *chatmodel.Attachment
	for _, att := range h.engine.StagedAttachments(sessionID) {
		if att.ID == attachmentID {
			found := att
			target = &found
			break
		}
	}
	if target == nil {
		utils.RespondError(w, http.StatusNotFound, "attachment not staged")
		return
	}

	sess, err := h.engine.SummarizeAttachment(r.Context(), sessionID, *target)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

// respondServiceError maps service sentinels onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrConversationBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrAttachmentTooLarge):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, app.ErrNotAuthenticated):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
