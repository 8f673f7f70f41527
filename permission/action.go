package permission

import (
	"net/http"
	"strings"
)

// Permission names derived from HTTP methods.
const (
	Get    = "get"
	Post   = "post"
	Put    = "put"
	Patch  = "patch"
	Delete = "delete"
)

// Method maps an HTTP method to the permission it requires. HEAD is
// checked as a read.
func Method(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return Get
	case http.MethodPost:
		return Post
	case http.MethodPut:
		return Put
	case http.MethodPatch:
		return Patch
	case http.MethodDelete:
		return Delete
	default:
		return strings.ToLower(method)
	}
}
