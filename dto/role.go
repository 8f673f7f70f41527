package dto

import (
	"github.com/legit-games/user-registry/importer"
	"github.com/legit-games/user-registry/models"
)

// PermissionResponse answers a permission query.
type PermissionResponse struct {
	Allowed bool `json:"allowed"`
}

// RemoveAllowsRequest is the body of DELETE /roles/:roleName/allows. With no permissions the
// resources are removed from the role entirely.
type RemoveAllowsRequest struct {
	Resources   models.StringList `json:"resources"`
	Permissions models.StringList `json:"permissions"`
}

// RoleResponse is a role with its grants and, when requested, its holders.
type RoleResponse struct {
	models.Role
	Users []string `json:"users,omitempty"`
}

// ImportResponse summarizes a bulk signup.
type ImportResponse struct {
	Msn          string              `json:"msn"`
	Total        int                 `json:"total"`
	SuccessCount int                 `json:"successCount"`
	ErrorCount   int                 `json:"errorCount"`
	Errors       []importer.RowError `json:"errors"`
}

// FromImportResult converts an importer.Result.
func FromImportResult(res *importer.Result) ImportResponse {
	errs := res.Errors
	if errs == nil {
		errs = []importer.RowError{}
	}
	return ImportResponse{
		Msn:          importMessage(res),
		Total:        res.Total,
		SuccessCount: res.Success,
		ErrorCount:   len(errs),
		Errors:       errs,
	}
}

func importMessage(res *importer.Result) string {
	switch {
	case res.Total == 0:
		return "no users found in file"
	case len(res.Errors) == 0:
		return "all users imported"
	case res.Success == 0:
		return "no users imported"
	default:
		return "some users could not be imported"
	}
}
