package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"scriptshare/internal/server/auth"
	"scriptshare/internal/server/database"
	"scriptshare/internal/server/service"
)

// Handler contains the HTTP handlers for the script sharing API.
type Handler struct {
	scripts *service.ScriptService
	users   *service.UserService
	config  *service.ConfigService
	db      *database.DB
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(scripts *service.ScriptService, users *service.UserService, config *service.ConfigService, db *database.DB) *Handler {
	return &Handler{scripts: scripts, users: users, config: config, db: db}
}

// HandleListScripts handles GET /api/scripts.
// Without query parameters every record is returned; status, q, tag and
// sort narrow the result server-side.
func (h *Handler) HandleListScripts(c echo.Context) error {
	filter := database.ScriptFilter{
		Status: database.Status(c.QueryParam("status")),
		Query:  c.QueryParam("q"),
		Tag:    c.QueryParam("tag"),
		SortBy: c.QueryParam("sort"),
	}

	scripts, err := h.scripts.List(c.Request().Context(), filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	if scripts == nil {
		scripts = []*database.Script{}
	}
	return c.JSON(http.StatusOK, scripts)
}

// HandleCreateScript handles POST /api/scripts.
// Accepts a multipart form with "image" and "json" files plus the script
// fields. The uploader defaults to the authenticated caller.
func (h *Handler) HandleCreateScript(c echo.Context) error {
	image, err := formUpload(c, "image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "image file is required"})
	}
	defer image.close()

	payload, err := formUpload(c, "json")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "json file is required"})
	}
	defer payload.close()

	uploaderID := c.FormValue("uploaderId")
	if uploaderID == "" {
		if caller := currentUser(c); caller != nil {
			uploaderID = caller.ID
		}
	}

	input := service.CreateScriptInput{
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
		Version:      c.FormValue("version"),
		BaseScriptID: c.FormValue("baseScriptId"),
		UploaderID:   uploaderID,
		UploaderName: c.FormValue("uploaderName"),
		Tags:         splitTags(c.FormValue("tags")),
		Image:        image.file,
		JSON:         payload.file,
	}

	result, err := h.scripts.Create(c.Request().Context(), input)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"script":  result.Script,
		"message": result.Message,
	})
}

type scriptUpdateRequest struct {
	Status    *database.Status `json:"status"`
	Likes     *int             `json:"likes"`
	Downloads *int             `json:"downloads"`
}

// HandleUpdateScript handles PUT /api/scripts/:id.
// Applies only the provided fields. Counter updates need any valid session;
// a status change needs the approve permission.
func (h *Handler) HandleUpdateScript(c echo.Context) error {
	var req scriptUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	if req.Status != nil && !auth.Allowed(currentUser(c), auth.ActionApprove) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "permission denied"})
	}

	script, err := h.scripts.Update(c.Request().Context(), c.Param("id"), database.ScriptUpdate{
		Status:    req.Status,
		Likes:     req.Likes,
		Downloads: req.Downloads,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "script": script})
}

// HandleDeleteScript handles DELETE /api/scripts/:id.
func (h *Handler) HandleDeleteScript(c echo.Context) error {
	if err := h.scripts.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "script deleted"})
}

// HandleDeleteSeries handles DELETE /api/scripts/series/:baseId.
// Deletes every version in the series and reports the aggregate outcome.
func (h *Handler) HandleDeleteSeries(c echo.Context) error {
	result, err := h.scripts.DeleteSeries(c.Request().Context(), c.Param("baseId"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": result.Deleted == result.Total,
		"result":  result,
	})
}

// HandleDownloadScript handles GET /api/scripts/:id/download.
// Streams the stored JSON payload as an attachment; every call increments
// the download counter.
func (h *Handler) HandleDownloadScript(c echo.Context) error {
	filePath, filename, err := h.scripts.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Attachment(filePath, filename)
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.scripts.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleListUsers handles GET /api/users.
func (h *Handler) HandleListUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if users == nil {
		users = []*database.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// HandleUpsertUser handles PUT /api/users/:id. The sentinel id "new"
// creates an account; any other id is a partial update.
func (h *Handler) HandleUpsertUser(c echo.Context) error {
	var upd service.UserUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	var (
		user *database.User
		err  error
	)
	if id := c.Param("id"); id == "new" {
		user, err = h.users.Create(c.Request().Context(), upd)
	} else {
		user, err = h.users.Update(c.Request().Context(), id, upd)
	}
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user})
}

// HandleDeleteUser handles DELETE /api/users/:id.
func (h *Handler) HandleDeleteUser(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "user deleted"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	result, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    result.User,
		"token":   result.Token,
	})
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HandleRegister handles POST /api/register.
func (h *Handler) HandleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	user, err := h.users.Register(c.Request().Context(), req.Name, req.Email)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": user})
}

// HandleGetConfig handles GET /api/config.
func (h *Handler) HandleGetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.config.Get(c.Request().Context()))
}

// HandleReplaceConfig handles PUT /api/config (whole-document replace).
func (h *Handler) HandleReplaceConfig(c echo.Context) error {
	var cfg database.SystemConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	if err := h.config.Replace(c.Request().Context(), &cfg); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "config": cfg})
}

type tagRequest struct {
	Tag string `json:"tag"`
}

// HandleAddTag handles POST /api/config/tags.
func (h *Handler) HandleAddTag(c echo.Context) error {
	var req tagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	cfg, err := h.config.AddTag(c.Request().Context(), req.Tag)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "config": cfg})
}

// HandleRemoveTag handles DELETE /api/config/tags/:tag.
func (h *Handler) HandleRemoveTag(c echo.Context) error {
	cfg, err := h.config.RemoveTag(c.Request().Context(), c.Param("tag"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "config": cfg})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// --- Helpers ---

type formFile struct {
	file *service.UploadFile
	src  multipart.File
}

func (f *formFile) close() {
	if f.src != nil {
		f.src.Close()
	}
}

func formUpload(c echo.Context, field string) (*formFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &formFile{
		src: src,
		file: &service.UploadFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        src,
		},
	}, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var tags []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	case errors.Is(err, service.ErrInvalidJSON):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "uploaded JSON file is malformed"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "record not found"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrQuotaExceeded):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	default:
		slog.Error("internal error", "path", c.Request().URL.Path, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
