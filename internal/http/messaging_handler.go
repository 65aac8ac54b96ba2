package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scoutlink/internal/domain"
	"scoutlink/internal/realtime"
	"scoutlink/internal/service"
)

// MessagingHandler mantiene dependencias para los endpoints de mensajeria.
type MessagingHandler struct {
	logger *zap.Logger
	svc    *service.MessagingService
	subs   realtime.Subscriber
}

// NewMessagingHandler crea una instancia de MessagingHandler.
func NewMessagingHandler(logger *zap.Logger, svc *service.MessagingService, subs realtime.Subscriber) *MessagingHandler {
	return &MessagingHandler{logger: logger, svc: svc, subs: subs}
}

// SendMessage maneja POST /messages.
func (h *MessagingHandler) SendMessage(c *gin.Context) {
	callerID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller"})
		return
	}

	var req struct {
		ReceiverID      string `json:"receiver_id"`
		Content         string `json:"content" binding:"required"`
		ConversationKey string `json:"conversation_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, view, err := h.svc.SendMessage(c.Request.Context(), callerID, req.ReceiverID, req.Content, req.ConversationKey)
	if err != nil {
		h.renderError(c, "send message failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg, "view": view})
}

// ListConversations maneja GET /conversations.
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	callerID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller"})
		return
	}

	items, next, err := h.svc.ListInbox(c.Request.Context(), callerID, c.Query("cursor"), queryInt(c, "limit"))
	if err != nil {
		h.renderError(c, "list conversations failed", err)
		return
	}
	if items == nil {
		items = []domain.ParticipantView{}
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": next})
}

// GetMessages maneja GET /conversations/:key/messages.
func (h *MessagingHandler) GetMessages(c *gin.Context) {
	callerID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller"})
		return
	}

	items, next, err := h.svc.GetHistory(c.Request.Context(), callerID, c.Param("key"), c.Query("cursor"), queryInt(c, "limit"))
	if err != nil {
		h.renderError(c, "get messages failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "next_cursor": next})
}

// MarkRead maneja POST /conversations/:key/read.
func (h *MessagingHandler) MarkRead(c *gin.Context) {
	callerID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller"})
		return
	}

	// Sin binding requerido: up_to_seq cero es una confirmacion no-op valida
	// y el servicio ya acota los valores negativos.
	var req struct {
		UpToSeq int64 `json:"up_to_seq"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid mark read request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.MarkConversationRead(c.Request.Context(), callerID, c.Param("key"), req.UpToSeq); err != nil {
		h.renderError(c, "mark read failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StreamEvents maneja GET /conversations/:key/events como stream SSE.
// El stream es advisory: tras una reconexion el cliente debe pedir el
// historial desde su ultimo seq conocido antes de confiar en los eventos.
func (h *MessagingHandler) StreamEvents(c *gin.Context) {
	callerID, ok := CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller"})
		return
	}

	key := c.Param("key")
	if _, err := domain.ParseKey(key, callerID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	ch, cancel := h.subs.Subscribe(c.Request.Context(), key)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("message", event)
			return true
		}
	})
}

func (h *MessagingHandler) renderError(c *gin.Context, logMsg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRecipient), errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidParticipants):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.logger.Error(logMsg, zap.Error(err))
	} else {
		h.logger.Warn(logMsg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
