package handler

import (
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/pkg/serverutils"
	"lupa-be/internal/service"
	internalWS "lupa-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const syncModule = "SyncHandler"

// SyncHandler streams a project's domain events, txid confirmations
// included, to connected browsers.
type SyncHandler struct {
	hub      *internalWS.Hub
	projects service.IProjectService
	logger   logger.ILogger
}

func NewSyncHandler(hub *internalWS.Hub, projects service.IProjectService, log logger.ILogger) *SyncHandler {
	return &SyncHandler{hub: hub, projects: projects, logger: log}
}

// authorize runs after the JWT middleware. Browsers cannot set headers on
// upgrade requests so the token usually arrives as ?token=.
func (h *SyncHandler) authorize(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return &service.ProjectNotFoundError{ProjectID: c.Params("projectId")}
	}
	if err := h.projects.Authorize(c.UserContext(), serverutils.OrgID(c), projectID); err != nil {
		return err
	}
	c.Locals("project_id", projectID)
	return c.Next()
}

// ServeWs upgrades the connection and registers it with the hub.
func (h *SyncHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		projectID, _ := conn.Locals("project_id").(uuid.UUID)
		h.logger.Info(syncModule, "Starting WebSocket session", map[string]interface{}{"project_id": projectID})
		internalWS.ServeWs(h.hub, conn, projectID)
		h.logger.Info(syncModule, "WebSocket session ended", map[string]interface{}{"project_id": projectID})
	})(c)
}

// Status reports how many sockets this instance holds for the project.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	projectID, _ := c.Locals("project_id").(uuid.UUID)
	return c.JSON(serverutils.SuccessResponse("Sync status", fiber.Map{
		"project_id": projectID,
		"connected":  h.hub.Connected(projectID),
	}))
}

func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	sync := router.Group("/projects/:projectId/sync")
	sync.Use(serverutils.JwtMiddleware, h.authorize)
	sync.Get("/ws", h.ServeWs)
	sync.Get("/status", h.Status)
}
