package database

import (
	"encoding/json"
	"time"
)

// Status is a script's moderation state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the known moderation states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Role is a user's coarse authority level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Script is one uploaded script record. Scripts sharing a BaseScriptID form
// a series (successive versions of the same underlying script); a script with
// no explicit lineage is its own series head.
type Script struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"imageUrl"`
	JSONURL      string          `json:"jsonUrl"`
	JSONData     json.RawMessage `json:"jsonData"`
	UploaderID   string          `json:"uploaderId"`
	UploaderName string          `json:"uploaderName"`
	UploadDate   string          `json:"uploadDate"` // date-only, YYYY-MM-DD
	Likes        int             `json:"likes"`
	Downloads    int             `json:"downloads"`
	Status       Status          `json:"status"`
	Tags         []string        `json:"tags"`
	Version      string          `json:"version"`
	BaseScriptID string          `json:"baseScriptId"`
	CreatedAt    time.Time       `json:"-"`
}

// Permissions is the per-user capability bag. It is evaluated server-side by
// the auth middleware before any mutating operation.
type Permissions struct {
	CanViewScripts     bool `json:"canViewScripts"`
	CanDownloadScripts bool `json:"canDownloadScripts"`
	CanUploadScripts   bool `json:"canUploadScripts"`
	CanManageUsers     bool `json:"canManageUsers"`
	CanManageTags      bool `json:"canManageTags"`
	CanApproveScripts  bool `json:"canApproveScripts"`
	CanDeleteScripts   bool `json:"canDeleteScripts"`
}

// DefaultPermissions is the bag granted to self-registered users.
func DefaultPermissions() Permissions {
	return Permissions{
		CanViewScripts:     true,
		CanDownloadScripts: true,
		CanUploadScripts:   true,
	}
}

// User is a registered account. Email is the login key; it is matched
// exactly and uniqueness is not enforced at the storage level.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	CanUpload   bool        `json:"canUpload"`
	SkipReview  bool        `json:"skipReview"`
	JoinDate    string      `json:"joinDate"` // date-only, YYYY-MM-DD
	UploadCount int         `json:"uploadCount"`
	Permissions Permissions `json:"permissions"`
}

// SystemSettings are the tunable policy knobs read by the upload and
// review flows.
type SystemSettings struct {
	AllowUserRegistration    bool     `json:"allowUserRegistration"`
	RequireScriptApproval    bool     `json:"requireScriptApproval"`
	MaxUploadSizeKB          int      `json:"maxUploadSizeKB"`
	AllowedFileTypes         []string `json:"allowedFileTypes"`
	MaxUploadsPerDay         int      `json:"maxUploadsPerDay"`
	MaxScriptsPerUser        int      `json:"maxScriptsPerUser"`
	RequireEmailVerification bool     `json:"requireEmailVerification"`
	AutoApproveNewUsers      bool     `json:"autoApproveNewUsers"`
}

// SystemConfig is the singleton configuration document: the tag vocabulary
// plus the policy settings.
type SystemConfig struct {
	AvailableTags  []string       `json:"availableTags"`
	SystemSettings SystemSettings `json:"systemSettings"`
}

// DefaultSystemConfig is what callers get when the stored config is missing
// or unreadable. Reads never fail the caller.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{AvailableTags: []string{}}
}

// Stats holds aggregate platform statistics.
type Stats struct {
	TotalScripts    int64 `json:"total_scripts"`
	ApprovedScripts int64 `json:"approved_scripts"`
	PendingScripts  int64 `json:"pending_scripts"`
	TotalLikes      int64 `json:"total_likes"`
	TotalDownloads  int64 `json:"total_downloads"`
	TotalUsers      int64 `json:"total_users"`
}
