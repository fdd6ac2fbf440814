package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"scriptshare/internal/server/database"
	"scriptshare/internal/server/storage"
)

// ScriptStore is the persistence surface the lifecycle service needs.
type ScriptStore interface {
	Create(ctx context.Context, s *database.Script, uploaderID string) error
	GetByID(ctx context.Context, id string) (*database.Script, error)
	List(ctx context.Context, f database.ScriptFilter) ([]*database.Script, error)
	ListSeries(ctx context.Context, baseID string) ([]*database.Script, error)
	Update(ctx context.Context, id string, upd database.ScriptUpdate) (*database.Script, error)
	IncrementDownloads(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountByUploader(ctx context.Context, uploaderID string) (int, error)
	CountUploadedOn(ctx context.Context, uploaderID, date string) (int, error)
	GetStats(ctx context.Context) (*database.Stats, error)
}

// UserStore is the subset of user persistence the lifecycle service needs.
type UserStore interface {
	Create(ctx context.Context, u *database.User) error
	GetByID(ctx context.Context, id string) (*database.User, error)
	GetByEmail(ctx context.Context, email string) (*database.User, error)
	List(ctx context.Context) ([]*database.User, error)
	Update(ctx context.Context, u *database.User) error
	Delete(ctx context.Context, id string) error
}

// ConfigStore reads and replaces the singleton system configuration.
type ConfigStore interface {
	Get(ctx context.Context) *database.SystemConfig
	Replace(ctx context.Context, cfg *database.SystemConfig) error
}

// UploadFile is one file from a multipart upload request.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// CreateScriptInput carries the fields and files of an upload request.
type CreateScriptInput struct {
	Title        string
	Description  string
	Version      string
	BaseScriptID string
	UploaderID   string
	UploaderName string
	Tags         []string
	Image        *UploadFile
	JSON         *UploadFile
}

// CreateScriptResult is the created record plus a human-readable outcome.
type CreateScriptResult struct {
	Script  *database.Script `json:"script"`
	Message string           `json:"message"`
}

// SeriesDeleteResult reports the outcome of a series delete. Deletion of the
// members is not atomic: a failure partway leaves the rest in place.
type SeriesDeleteResult struct {
	Total   int      `json:"total"`
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// ScriptService contains the moderation, versioning and counter rules for
// script records.
type ScriptService struct {
	scripts ScriptStore
	users   UserStore
	configs ConfigStore
	store   storage.Store
	baseURL string
}

// NewScriptService creates a new script lifecycle service.
func NewScriptService(scripts ScriptStore, users UserStore, configs ConfigStore, store storage.Store, baseURL string) *ScriptService {
	return &ScriptService{
		scripts: scripts,
		users:   users,
		configs: configs,
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Create validates an upload, stores both asset files, and inserts the new
// record. Initial status is approved when the uploader skips review or the
// system does not require approval, pending otherwise. Without an explicit
// BaseScriptID the script becomes its own series head.
func (s *ScriptService) Create(ctx context.Context, in CreateScriptInput) (*CreateScriptResult, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	version := strings.TrimSpace(in.Version)

	if title == "" {
		return nil, missingField("title")
	}
	if description == "" {
		return nil, missingField("description")
	}
	if version == "" {
		return nil, missingField("version")
	}
	if in.Image == nil {
		return nil, missingField("image")
	}
	if in.JSON == nil {
		return nil, missingField("json")
	}

	cfg := s.configs.Get(ctx)
	settings := cfg.SystemSettings

	if err := checkFile(in.Image, settings, true); err != nil {
		return nil, err
	}
	if err := checkFile(in.JSON, settings, false); err != nil {
		return nil, err
	}

	// The payload must be a JSON object; unknown fields are kept as-is.
	payload, err := io.ReadAll(in.JSON.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read script payload: %w", err)
	}
	jsonData, err := validatePayload(payload)
	if err != nil {
		return nil, err
	}

	var uploader *database.User
	if in.UploaderID != "" {
		uploader, err = s.users.GetByID(ctx, in.UploaderID)
		if err != nil && !errors.Is(err, database.ErrUserNotFound) {
			return nil, err
		}
	}

	uploadDate := time.Now().Format("2006-01-02")
	if uploader != nil {
		if err := s.checkQuotas(ctx, uploader.ID, uploadDate, settings); err != nil {
			return nil, err
		}
	}

	imageName, _, err := s.store.Save(storage.KindImage, assetExt(in.Image.Filename), in.Image.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	jsonName, _, err := s.store.Save(storage.KindJSON, ".json", bytes.NewReader(payload))
	if err != nil {
		s.store.Delete(storage.KindImage, imageName)
		return nil, fmt.Errorf("failed to store script payload: %w", err)
	}

	approved := (uploader != nil && uploader.SkipReview) || !settings.RequireScriptApproval
	status := database.StatusPending
	if approved {
		status = database.StatusApproved
	}

	id := newID()
	baseID := in.BaseScriptID
	if baseID == "" {
		baseID = id
	}

	script := &database.Script{
		ID:           id,
		Title:        title,
		Description:  description,
		ImageURL:     s.assetURL(storage.KindImage, imageName),
		JSONURL:      s.assetURL(storage.KindJSON, jsonName),
		JSONData:     jsonData,
		UploaderID:   in.UploaderID,
		UploaderName: resolveUploaderName(uploader, in.UploaderName),
		UploadDate:   uploadDate,
		Status:       status,
		Tags:         cleanTags(in.Tags),
		Version:      version,
		BaseScriptID: baseID,
		CreatedAt:    time.Now().UTC(),
	}
	if script.UploaderID == "" {
		script.UploaderID = "anonymous"
	}

	uploaderID := ""
	if uploader != nil {
		uploaderID = uploader.ID
	}
	if err := s.scripts.Create(ctx, script, uploaderID); err != nil {
		s.store.Delete(storage.KindImage, imageName)
		s.store.Delete(storage.KindJSON, jsonName)
		return nil, fmt.Errorf("failed to create script record: %w", err)
	}

	message := "script uploaded, awaiting review"
	if approved {
		message = "script uploaded and published"
	}

	slog.Info("script created",
		"id", script.ID,
		"title", script.Title,
		"status", script.Status,
		"base_script_id", script.BaseScriptID,
		"uploader_id", script.UploaderID,
	)

	return &CreateScriptResult{Script: script, Message: message}, nil
}

// Update applies a partial update: only the provided fields change, the rest
// stay untouched. Counter values arrive precomputed from the caller.
func (s *ScriptService) Update(ctx context.Context, id string, upd database.ScriptUpdate) (*database.Script, error) {
	if upd.Status != nil && !database.ValidStatus(*upd.Status) {
		return nil, &ValidationError{Field: "status", Cause: "must be pending, approved or rejected"}
	}

	script, err := s.scripts.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, database.ErrScriptNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return script, nil
}

// Delete removes the record and best-effort deletes both asset files.
// Missing files are tolerated and never fail the delete.
func (s *ScriptService) Delete(ctx context.Context, id string) error {
	script, err := s.scripts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrScriptNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.scripts.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrScriptNotFound) {
			return ErrNotFound
		}
		return err
	}

	if name := path.Base(script.ImageURL); name != "" && name != "." {
		if err := s.store.Delete(storage.KindImage, name); err != nil {
			slog.Error("failed to delete image asset", "script_id", id, "error", err)
		}
	}
	if name := path.Base(script.JSONURL); name != "" && name != "." {
		if err := s.store.Delete(storage.KindJSON, name); err != nil {
			slog.Error("failed to delete json asset", "script_id", id, "error", err)
		}
	}

	slog.Info("script deleted", "id", id, "title", script.Title)
	return nil
}

// DeleteSeries deletes every script in the series, one member at a time,
// and reports the aggregate outcome. Partial failure is reported, not
// rolled back.
func (s *ScriptService) DeleteSeries(ctx context.Context, baseID string) (*SeriesDeleteResult, error) {
	members, err := s.scripts.ListSeries(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}

	result := &SeriesDeleteResult{Total: len(members)}
	for _, m := range members {
		if err := s.Delete(ctx, m.ID); err != nil {
			slog.Error("failed to delete series member",
				"base_script_id", baseID, "script_id", m.ID, "error", err)
			result.Failed = append(result.Failed, m.ID)
			continue
		}
		result.Deleted++
	}
	return result, nil
}

// Download bumps the download counter and resolves the stored payload file.
// Every call counts: N downloads increment the counter by N.
func (s *ScriptService) Download(ctx context.Context, id string) (filePath string, filename string, err error) {
	script, err := s.scripts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrScriptNotFound) {
			return "", "", ErrNotFound
		}
		return "", "", err
	}

	assetName := path.Base(script.JSONURL)
	filePath, err = s.store.Path(storage.KindJSON, assetName)
	if err != nil {
		return "", "", fmt.Errorf("%w: backing file missing", ErrNotFound)
	}

	if err := s.scripts.IncrementDownloads(ctx, id); err != nil {
		if errors.Is(err, database.ErrScriptNotFound) {
			return "", "", ErrNotFound
		}
		return "", "", err
	}

	return filePath, downloadFilename(script.Title, script.Version), nil
}

// List returns scripts matching the filter. Ranked listings (sort by likes
// or downloads) cover the approved subset only.
func (s *ScriptService) List(ctx context.Context, f database.ScriptFilter) ([]*database.Script, error) {
	switch f.SortBy {
	case "", "likes", "downloads":
	default:
		return nil, &ValidationError{Field: "sort", Cause: "must be likes or downloads"}
	}
	if f.Status != "" && !database.ValidStatus(f.Status) {
		return nil, &ValidationError{Field: "status", Cause: "must be pending, approved or rejected"}
	}
	if f.SortBy != "" && f.Status == "" {
		f.Status = database.StatusApproved
	}
	return s.scripts.List(ctx, f)
}

// Stats returns aggregate platform statistics.
func (s *ScriptService) Stats(ctx context.Context) (*database.Stats, error) {
	return s.scripts.GetStats(ctx)
}

func (s *ScriptService) assetURL(kind storage.Kind, filename string) string {
	return fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, kind, filename)
}

func (s *ScriptService) checkQuotas(ctx context.Context, uploaderID, date string, settings database.SystemSettings) error {
	if settings.MaxScriptsPerUser > 0 {
		n, err := s.scripts.CountByUploader(ctx, uploaderID)
		if err != nil {
			return err
		}
		if n >= settings.MaxScriptsPerUser {
			return fmt.Errorf("%w: script limit of %d reached", ErrQuotaExceeded, settings.MaxScriptsPerUser)
		}
	}
	if settings.MaxUploadsPerDay > 0 {
		n, err := s.scripts.CountUploadedOn(ctx, uploaderID, date)
		if err != nil {
			return err
		}
		if n >= settings.MaxUploadsPerDay {
			return fmt.Errorf("%w: daily limit of %d reached", ErrQuotaExceeded, settings.MaxUploadsPerDay)
		}
	}
	return nil
}

// --- Helpers ---

func newID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func resolveUploaderName(uploader *database.User, fallback string) string {
	if uploader != nil && uploader.Name != "" {
		return uploader.Name
	}
	if fallback != "" {
		return fallback
	}
	return "anonymous"
}

// checkFile validates size and content type against the system settings.
func checkFile(f *UploadFile, settings database.SystemSettings, isImage bool) error {
	if settings.MaxUploadSizeKB > 0 && f.Size > int64(settings.MaxUploadSizeKB)*1024 {
		return &ValidationError{
			Field: f.Filename,
			Cause: fmt.Sprintf("exceeds maximum upload size of %d KB", settings.MaxUploadSizeKB),
		}
	}

	if isImage {
		if !strings.HasPrefix(f.ContentType, "image/") {
			return &ValidationError{Field: "image", Cause: "must be an image file"}
		}
	} else {
		if f.ContentType != "application/json" && !strings.HasSuffix(strings.ToLower(f.Filename), ".json") {
			return &ValidationError{Field: "json", Cause: "must be a JSON file"}
		}
	}

	if len(settings.AllowedFileTypes) > 0 && f.ContentType != "" {
		allowed := false
		for _, t := range settings.AllowedFileTypes {
			if t == f.ContentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ValidationError{
				Field: f.Filename,
				Cause: fmt.Sprintf("file type %s is not allowed", f.ContentType),
			}
		}
	}
	return nil
}

// validatePayload checks the uploaded bytes parse as a JSON object and
// returns them untouched, so unknown fields survive round-trips.
func validatePayload(payload []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(payload) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(payload), nil
}

func assetExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func cleanTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

var nonWord = regexp.MustCompile(`[^\w\s-]`)

// downloadFilename derives the attachment name: the title with non-word
// characters stripped (falling back to "script"), joined with the version.
func downloadFilename(title, version string) string {
	name := strings.TrimSpace(nonWord.ReplaceAllString(title, ""))
	if name == "" {
		name = "script"
	}
	if version == "" {
		version = "v1.0"
	}
	return name + "_" + version + ".json"
}
