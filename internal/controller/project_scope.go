package controller

import (
	"lupa-be/internal/pkg/serverutils"
	"lupa-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const localProjectID = "project_id"

// projectScope resolves :projectId and rejects projects outside the caller's
// organization. It must run after serverutils.JwtMiddleware.
func projectScope(projects service.IProjectService) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		projectId, err := uuid.Parse(ctx.Params("projectId"))
		if err != nil {
			return &service.ProjectNotFoundError{ProjectID: ctx.Params("projectId")}
		}
		if err := projects.Authorize(ctx.UserContext(), serverutils.OrgID(ctx), projectId); err != nil {
			return err
		}
		ctx.Locals(localProjectID, projectId)
		return ctx.Next()
	}
}

func scopedProjectID(ctx *fiber.Ctx) uuid.UUID {
	id, _ := ctx.Locals(localProjectID).(uuid.UUID)
	return id
}

func uuidParam(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
