package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/pkg/serverutils"
	"lupa-be/internal/repository/memory"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/internal/service"
	"lupa-be/pkg/blob"
	"lupa-be/pkg/events"
	"lupa-be/pkg/kv"
	"lupa-be/pkg/taskqueue"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-secret"

type stubTasks struct{}

func (stubTasks) Trigger(context.Context, string, interface{}, taskqueue.TriggerOptions) (string, error) {
	return uuid.NewString(), nil
}

type harness struct {
	app     *fiber.App
	factory unitofwork.RepositoryFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	log := logger.NewNopLogger()
	factory := memory.NewRepositoryFactory(memory.NewDatabase())
	blobs := blob.NewLocalStore(t.TempDir(), "http://localhost/uploads")
	noop := events.PublisherFunc(func(context.Context, events.Event) error { return nil })

	projects := service.NewProjectService(factory, log)
	documents := service.NewDocumentService(factory, stubTasks{}, blobs, 0, log)
	deployments := service.NewDeploymentService(factory, kv.NewMemoryStore(), noop, stubTasks{}, blobs, log)
	search := service.NewSearchService(factory, nil, nil, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api/v1")
	NewProjectController(projects).RegisterRoutes(api)
	NewDeploymentController(deployments, search, projects).RegisterRoutes(api)
	NewDocumentController(documents, projects).RegisterRoutes(api)

	return &harness{app: app, factory: factory}
}

func token(t *testing.T, orgID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"org_id":  orgID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, orgID string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if orgID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token(t, orgID))
	}
	return h.send(t, req)
}

func (h *harness) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (h *harness) createProject(t *testing.T, orgID string) string {
	t.Helper()
	status, env := h.do(t, http.MethodPost, "/api/v1/projects", orgID, map[string]string{"name": "proj1"})
	require.Equal(t, http.StatusCreated, status)
	var p struct {
		Id string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p.Id
}

func TestProjectRoutes(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = h.do(t, http.MethodPost, "/api/v1/projects", "org1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	id := h.createProject(t, "org1")

	status, _ = h.do(t, http.MethodGet, "/api/v1/projects/"+id, "org1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = h.do(t, http.MethodGet, "/api/v1/projects/"+id, "org2", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PROJECT_NOT_FOUND", env.Error.Code)

	status, _ = h.do(t, http.MethodDelete, "/api/v1/projects/"+id, "org1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, http.MethodGet, "/api/v1/projects/"+id, "org1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDocumentRoutes(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject(t, "org1")
	base := "/api/v1/projects/" + projectID

	status, env := h.do(t, http.MethodPost, base+"/documents", "org2", map[string]string{"name": "doc1"})
	assert.Equal(t, http.StatusNotFound, status, "other organizations cannot see the project")
	assert.Equal(t, "PROJECT_NOT_FOUND", env.Error.Code)

	status, env = h.do(t, http.MethodPost, base+"/documents", "org1", map[string]string{
		"folder": "a/b",
		"name":   "doc1",
		"url":    "https://example.com/a/b/doc1",
		"type":   "website",
	})
	require.Equal(t, http.StatusAccepted, status, env.Error.Message)
	var created struct {
		Id         string `json:"id"`
		SnapshotId string `json:"snapshot_id"`
		Folder     string `json:"folder"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "/a/b/", created.Folder)

	status, env = h.do(t, http.MethodPost, base+"/documents", "org1", map[string]string{
		"folder": "/a/b/",
		"name":   "doc1",
		"url":    "https://example.com/other",
		"type":   "website",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DOCUMENT_EXISTS", env.Error.Code)

	status, env = h.do(t, http.MethodGet, base+"/documents?folder=a/b", "org1", nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 1)

	status, env = h.do(t, http.MethodGet, base+"/resolve?path=/a/b/doc1", "org1", nil)
	require.Equal(t, http.StatusOK, status)
	var resolved struct {
		Snapshot struct {
			Id string `json:"id"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, created.SnapshotId, resolved.Snapshot.Id)

	status, env = h.do(t, http.MethodGet, base+"/resolve?path=/a/b/doc:nope", "org1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PATH", env.Error.Code)

	status, _ = h.do(t, http.MethodPost, base+"/documents/"+created.Id+"/snapshots", "org1", nil)
	assert.Equal(t, http.StatusAccepted, status)

	status, env = h.do(t, http.MethodGet, base+"/documents/"+created.Id+"/snapshots", "org1", nil)
	require.Equal(t, http.StatusOK, status)
	var history []struct {
		Version int `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)

	status, env = h.do(t, http.MethodDelete, base+"/documents/not-a-uuid", "org1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	status, _ = h.do(t, http.MethodDelete, base+"/documents/"+created.Id, "org1", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestDocumentUpload(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject(t, "org1")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("folder", "manuals"))
	part, err := w.CreateFormFile("file", "guide.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+projectID+"/documents", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token(t, "org1"))

	status, env := h.send(t, req)
	require.Equal(t, http.StatusAccepted, status, env.Error.Message)
	var created struct {
		Folder string `json:"folder"`
		Name   string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "/manuals/", created.Folder)
	assert.Equal(t, "guide.pdf", created.Name)
}

func TestBulkWebsiteRoute(t *testing.T) {
	h := newHarness(t)
	base := "/api/v1/projects/" + h.createProject(t, "org1")

	status, env := h.do(t, http.MethodPost, base+"/snapshots/bulk", "org1", map[string]interface{}{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, env = h.do(t, http.MethodPost, base+"/snapshots/bulk", "org1", map[string]interface{}{
		"urls": []string{"https://example.com/docs/a", "https://example.com/docs/b"},
	})
	require.Equal(t, http.StatusAccepted, status, env.Error.Message)
	var res struct {
		Items []map[string]interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Items, 2)
}

func TestDeploymentRoutes(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject(t, "org1")
	base := "/api/v1/projects/" + projectID + "/deployments"

	pid := uuid.MustParse(projectID)
	ready := &entity.Deployment{Id: uuid.New(), ProjectId: pid, Name: "d1", Status: entity.DeploymentStatusReady}
	queued := &entity.Deployment{Id: uuid.New(), ProjectId: pid, Name: "d2", Status: entity.DeploymentStatusQueued}
	uow := h.factory.NewUnitOfWork(context.Background())
	require.NoError(t, uow.DeploymentRepository().Create(context.Background(), ready))
	require.NoError(t, uow.DeploymentRepository().Create(context.Background(), queued))

	status, _ := h.do(t, http.MethodPost, base, "org1", nil)
	assert.Equal(t, http.StatusAccepted, status)

	status, env := h.do(t, http.MethodGet, base, "org1", nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 3)

	status, env = h.do(t, http.MethodPatch, base+"/"+queued.Id.String()+"/promote", "org1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "DEPLOYMENT_NOT_READY", env.Error.Code)

	status, env = h.do(t, http.MethodPatch, base+"/"+ready.Id.String()+"/promote", "org1", nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	var change struct {
		Environment *string `json:"environment"`
		TxId        string  `json:"txid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &change))
	require.NotNil(t, change.Environment)
	assert.Equal(t, "production", *change.Environment)
	assert.NotEmpty(t, change.TxId)

	status, env = h.do(t, http.MethodPatch, base+"/"+ready.Id.String()+"/environment", "org1", map[string]interface{}{"environment": "preview"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, env = h.do(t, http.MethodPatch, base+"/"+ready.Id.String()+"/environment", "org1", map[string]interface{}{"environment": nil})
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, env = h.do(t, http.MethodPatch, base+"/"+ready.Id.String()+"/demote", "org1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "DEPLOYMENT_NOT_IN_PRODUCTION", env.Error.Code)

	status, env = h.do(t, http.MethodGet, base+"/"+ready.Id.String()+"/search", "org1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, env = h.do(t, http.MethodGet, base+"/"+uuid.NewString()+"/search?q=hello", "org1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "DEPLOYMENT_NOT_FOUND", env.Error.Code)

	status, env = h.do(t, http.MethodGet, base+"/"+ready.Id.String()+"/search?q=hello", "org1", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SEARCH_UNAVAILABLE", env.Error.Code)
}
