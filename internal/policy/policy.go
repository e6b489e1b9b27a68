// Package policy decides whether a role may access a request path.
//
// Permission entries use one explicit syntax:
//
//	"/tasks"    matches "/tasks" only
//	"/tasks/*"  matches "/tasks" and anything below it ("/tasks/1/edit")
//	"*"         matches every path
//
// Matching is segment-aware, so "/tasks/*" never matches "/tasks-admin".
// Trailing slashes and dot segments are cleaned from both sides first.
package policy

import (
	"path"
	"strings"

	"github.com/uxurimx/uxuri-sub001/internal/models"
)

const wildcard = "*"

// CanAccess reports whether role grants access to requestPath. A nil role is
// always denied. The same function backs the HTTP access gate and handler
// guards.
func CanAccess(role *models.Role, requestPath string) bool {
	if role == nil {
		return false
	}
	return AnyMatch(role.Permissions, requestPath)
}

// AnyMatch reports whether any of patterns matches requestPath.
func AnyMatch(patterns []string, requestPath string) bool {
	target := Normalize(requestPath)
	for _, pattern := range patterns {
		if match(pattern, target) {
			return true
		}
	}
	return false
}

// Match reports whether a single permission pattern matches requestPath.
func Match(pattern, requestPath string) bool {
	return match(pattern, Normalize(requestPath))
}

func match(pattern, target string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if pattern == wildcard || pattern == "/"+wildcard {
		return true
	}

	if base, ok := strings.CutSuffix(pattern, "/"+wildcard); ok {
		base = Normalize(base)
		if base == "/" {
			return true
		}
		return target == base || strings.HasPrefix(target, base+"/")
	}

	// A "*" anywhere else is not part of the syntax and matches literally.
	return Normalize(pattern) == target
}

// Normalize cleans a request path: leading slash, no trailing slash, no
// dot segments. The query string, if any, is dropped.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
