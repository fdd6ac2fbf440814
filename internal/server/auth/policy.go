package auth

import "scriptshare/internal/server/database"

// Action is an operation a caller wants to perform.
type Action string

const (
	ActionUpload      Action = "upload"
	ActionApprove     Action = "approve"
	ActionDelete      Action = "delete"
	ActionManageUsers Action = "manage_users"
	ActionManageTags  Action = "manage_tags"
	ActionDownload    Action = "download"
	ActionView        Action = "view"
)

// Allowed reports whether the user may perform the action. Admins pass every
// check; everyone else is gated by their permission bag. Uploading
// additionally requires the account-level CanUpload flag.
func Allowed(u *database.User, a Action) bool {
	if u == nil {
		return false
	}
	if u.Role == database.RoleAdmin {
		return true
	}

	p := u.Permissions
	switch a {
	case ActionUpload:
		return u.CanUpload && p.CanUploadScripts
	case ActionApprove:
		return p.CanApproveScripts
	case ActionDelete:
		return p.CanDeleteScripts
	case ActionManageUsers:
		return p.CanManageUsers
	case ActionManageTags:
		return p.CanManageTags
	case ActionDownload:
		return p.CanDownloadScripts
	case ActionView:
		return p.CanViewScripts
	}
	return false
}
