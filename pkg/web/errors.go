package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/chatback/chatback/pkg/interview"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/session"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for coordinator errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrEmptySessionID):
		return badRequest(c, "Session ID is required")

	case persistence.IsSessionNotFound(err):
		return notFound(c, "Session not found")

	case errors.Is(err, persistence.ErrInterviewStateNotFound):
		return notFound(c, "Interview state not found")

	case errors.Is(err, session.ErrArtifactNotReady):
		return notFound(c, "No generated artifact for this phase yet")

	case persistence.IsStateConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail("another turn is being processed for this session, retry shortly")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, interview.ErrInterviewCompleted):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail("the interview for this session is already complete")

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
