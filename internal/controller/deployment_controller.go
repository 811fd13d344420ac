package controller

import (
	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/serverutils"
	"lupa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDeploymentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Promote(ctx *fiber.Ctx) error
	Demote(ctx *fiber.Ctx) error
	UpdateEnvironment(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
}

type deploymentController struct {
	service  service.IDeploymentService
	search   service.ISearchService
	projects service.IProjectService
}

func NewDeploymentController(service service.IDeploymentService, search service.ISearchService, projects service.IProjectService) IDeploymentController {
	return &deploymentController{service: service, search: search, projects: projects}
}

func (c *deploymentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/projects/:projectId/deployments")
	h.Use(serverutils.JwtMiddleware, projectScope(c.projects))
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get("/:deploymentId", c.Show)
	h.Patch("/:deploymentId/promote", c.Promote)
	h.Patch("/:deploymentId/demote", c.Demote)
	h.Patch("/:deploymentId/environment", c.UpdateEnvironment)
	h.Get("/:deploymentId/search", c.Search)
}

func (c *deploymentController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateDeploymentRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), scopedProjectID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Deployment queued", res))
}

func (c *deploymentController) List(ctx *fiber.Ctx) error {
	res, err := c.service.List(ctx.UserContext(), scopedProjectID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all deployment", res))
}

func (c *deploymentController) Show(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "deploymentId")
	if err != nil {
		return err
	}
	res, err := c.service.Show(ctx.UserContext(), scopedProjectID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show deployment", res))
}

func (c *deploymentController) Promote(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "deploymentId")
	if err != nil {
		return err
	}
	res, err := c.service.PromoteToProduction(ctx.UserContext(), scopedProjectID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Deployment promoted to production", res))
}

func (c *deploymentController) Demote(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "deploymentId")
	if err != nil {
		return err
	}
	res, err := c.service.DemoteFromProduction(ctx.UserContext(), scopedProjectID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Deployment demoted from production", res))
}

func (c *deploymentController) UpdateEnvironment(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "deploymentId")
	if err != nil {
		return err
	}
	var req dto.UpdateEnvironmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	var env *entity.Environment
	if req.Environment != nil {
		e := entity.Environment(*req.Environment)
		env = &e
	}
	res, err := c.service.UpdateEnvironmentWithValidation(ctx.UserContext(), scopedProjectID(ctx), id, env)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Deployment environment updated", res))
}

func (c *deploymentController) Search(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "deploymentId")
	if err != nil {
		return err
	}
	var req dto.SearchRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.search.Search(ctx.UserContext(), scopedProjectID(ctx), id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success search deployment", res))
}
