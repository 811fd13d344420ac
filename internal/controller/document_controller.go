package controller

import (
	"io"
	"strings"

	"lupa-be/internal/dto"
	"lupa-be/internal/pkg/serverutils"
	"lupa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	CreateSnapshot(ctx *fiber.Ctx) error
	ListSnapshots(ctx *fiber.Ctx) error
	BulkCreateWebsites(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
}

type documentController struct {
	service  service.IDocumentService
	projects service.IProjectService
}

func NewDocumentController(service service.IDocumentService, projects service.IProjectService) IDocumentController {
	return &documentController{service: service, projects: projects}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/projects/:projectId")
	h.Use(serverutils.JwtMiddleware, projectScope(c.projects))
	h.Post("/documents", c.Create)
	h.Get("/documents", c.List)
	h.Delete("/documents/:documentId", c.Delete)
	h.Post("/documents/:documentId/snapshots", c.CreateSnapshot)
	h.Get("/documents/:documentId/snapshots", c.ListSnapshots)
	h.Post("/snapshots/bulk", c.BulkCreateWebsites)
	h.Get("/resolve", c.Resolve)
}

// Create accepts either a JSON body or a multipart upload with a "file" part.
func (c *documentController) Create(ctx *fiber.Ctx) error {
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return c.upload(ctx)
	}

	var req dto.CreateDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), serverutils.OrgID(ctx), scopedProjectID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", res))
}

func (c *documentController) upload(ctx *fiber.Ctx) error {
	var form dto.UploadDocumentRequest
	if err := ctx.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(form); err != nil {
		return err
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	f, err := file.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req := dto.CreateDocumentRequest{
		Folder:             form.Folder,
		Name:               form.Name,
		Filename:           file.Filename,
		RefreshFrequency:   form.RefreshFrequency,
		ParserName:         form.ParserName,
		ParsingInstruction: form.ParsingInstruction,
	}
	res, err := c.service.Upload(ctx.UserContext(), serverutils.OrgID(ctx), scopedProjectID(ctx), &req, content, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	var req dto.ListDocumentsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	res, err := c.service.List(ctx.UserContext(), scopedProjectID(ctx), req.Folder)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all document", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "documentId")
	if err != nil {
		return err
	}
	if err := c.service.Delete(ctx.UserContext(), scopedProjectID(ctx), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete document", nil))
}

func (c *documentController) CreateSnapshot(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "documentId")
	if err != nil {
		return err
	}
	var req dto.CreateSnapshotRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateSnapshot(ctx.UserContext(), scopedProjectID(ctx), id, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Snapshot queued", res))
}

func (c *documentController) ListSnapshots(ctx *fiber.Ctx) error {
	id, err := uuidParam(ctx, "documentId")
	if err != nil {
		return err
	}
	res, err := c.service.ListSnapshots(ctx.UserContext(), scopedProjectID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all snapshot", res))
}

func (c *documentController) BulkCreateWebsites(ctx *fiber.Ctx) error {
	var req dto.BulkWebsiteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.BulkCreateWebsites(ctx.UserContext(), serverutils.OrgID(ctx), scopedProjectID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Websites queued", res))
}

func (c *documentController) Resolve(ctx *fiber.Ctx) error {
	var req dto.ResolveRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Resolve(ctx.UserContext(), scopedProjectID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve document", res))
}
