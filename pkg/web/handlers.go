// Package web provides HTTP handlers and REST API endpoints for session management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/session"
)

type APIHandlers struct {
	coordinator *session.Coordinator
	chat        *session.ArtifactChat
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	coordinator *session.Coordinator,
	chat *session.ArtifactChat,
	p persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		coordinator: coordinator,
		chat:        chat,
		persistence: p,
		validator:   validator,
	}
}

func (h *APIHandlers) CreateSession(c fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, intro, err := h.coordinator.CreateSession(c.Context(), req.UserID, req.Title, req.Username)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{
		Session:      created,
		Introduction: intro,
	})
}

func (h *APIHandlers) ListSessions(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	sessions, err := h.persistence.Sessions().ListByUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":    sessions,
		"total_count": len(sessions),
	})
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	found, err := h.persistence.Sessions().GetByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) DeleteSession(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	err := h.coordinator.DeleteSession(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PostMessage(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	var req PostMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	turn, err := h.coordinator.HandleMessage(c.Context(), id, req.Message)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(turn)
}

func (h *APIHandlers) GetStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	status, err := h.coordinator.Status(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) GetMessages(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	messages, err := h.coordinator.History(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":    messages,
		"total_count": len(messages),
	})
}

func (h *APIHandlers) PostArtifactChat(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	phase, err := models.ParsePhase(c.Params("phase"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req ArtifactChatRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.chat.Chat(c.Context(), id, phase, req.Message)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetArtifactChatHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	phase, err := models.ParsePhase(c.Params("phase"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	history, err := h.chat.History(c.Context(), id, phase)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"history":     history,
		"total_count": len(history),
	})
}

func (h *APIHandlers) DeleteArtifactChatHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	phase, err := models.ParsePhase(c.Params("phase"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.chat.Clear(c.Context(), id, phase)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryErr := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Chatback API is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if repositoryErr != nil {
		status = "unhealthy"
		message = "Chatback API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = repositoryErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
